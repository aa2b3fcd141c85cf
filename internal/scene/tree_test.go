package scene

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTree_Resolve(t *testing.T) {
	tree := NewTree(
		GenericNode{Name: "Root", TypeName: "Node3D"},
		GenericNode{Name: "Child", TypeName: "Mesh", Parent: "Root"},
		GenericNode{Name: "Leaf", TypeName: "Camera3D", Parent: "/Root/Child"},
		GenericNode{Name: "Other", TypeName: "Node3D", Parent: NoParent},
	)

	resolved, err := tree.Resolve()
	require.NoError(t, err)
	require.Len(t, resolved, 4)

	t.Run("Paths follow parent references", func(t *testing.T) {
		assert.Equal(t, "/Root", resolved[0].Path)
		assert.Equal(t, "/Root/Child", resolved[1].Path)
		assert.Equal(t, "/Root/Child/Leaf", resolved[2].Path)
		assert.Equal(t, "/Other", resolved[3].Path)
	})

	t.Run("Depth is relative to the scene root", func(t *testing.T) {
		assert.Equal(t, 0, resolved[0].Depth)
		assert.Equal(t, 1, resolved[1].Depth)
		assert.Equal(t, 2, resolved[2].Depth)
	})
}

func TestTree_ResolveMissingParent(t *testing.T) {
	tree := NewTree(
		GenericNode{Name: "Root"},
		GenericNode{Name: "Orphan", Parent: "Ghost"},
		GenericNode{Name: "Grandchild", Parent: "Orphan"},
	)

	resolved, err := tree.Resolve()
	assert.Nil(t, resolved)

	var missing *MissingParentError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "Orphan", missing.Node)
	assert.Equal(t, "Ghost", missing.Parent)
	assert.Equal(t, 1, missing.Index)
	assert.Contains(t, err.Error(), "Orphan")
}

func TestTree_ResolveParentAfterChild(t *testing.T) {
	tree := NewTree(
		GenericNode{Name: "Child", Parent: "Root"},
		GenericNode{Name: "Root"},
	)

	_, err := tree.Resolve()
	var missing *MissingParentError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "Child", missing.Node)
}

func TestTree_ResolveDuplicatePath(t *testing.T) {
	tree := NewTree(
		GenericNode{Name: "Root"},
		GenericNode{Name: "A", Parent: "Root"},
		GenericNode{Name: "A", Parent: "/Root"},
	)

	_, err := tree.Resolve()
	var dup *DuplicatePathError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "/Root/A", dup.Path)
}

func TestTree_ResolveInvalidName(t *testing.T) {
	for _, name := range []string{"", "  ", "a/b", "."} {
		_, err := NewTree(GenericNode{Name: name}).Resolve()
		var invalid *InvalidNameError
		assert.ErrorAs(t, err, &invalid, "name %q should be rejected", name)
	}
}

func TestTree_ResolveDoesNotShareProperties(t *testing.T) {
	props := map[string]PropertyValue{"visible": Boolean(true)}
	tree := NewTree(GenericNode{Name: "Root", Properties: props})

	resolved, err := tree.Resolve()
	require.NoError(t, err)

	resolved[0].Properties["visible"] = Boolean(false)
	assert.Equal(t, Boolean(true), props["visible"], "resolution must copy the property map")
}

func TestPathHelpers(t *testing.T) {
	assert.Equal(t, "/Root", Join(RootPath, "Root"))
	assert.Equal(t, "/Root/Child", Join("/Root", "Child"))
	assert.Equal(t, "Child", Base("/Root/Child"))
	assert.Equal(t, "/Root", Dir("/Root/Child"))
	assert.Equal(t, RootPath, Dir("/Root"))
	assert.Equal(t, -1, Depth(RootPath))
}
