// Package mapper translates between the format-neutral scene tree and a USD
// stage, in both directions.
package mapper

import (
	"fmt"
	"log/slog"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/go-gl/mathgl/mgl64"

	"tscnusd/internal/scene"
	"tscnusd/internal/usd"
)

// AutoDefaultPrim selects the first top-level node as the layer's default
// prim.
const AutoDefaultPrim = "auto"

// Options configures ToStage.
type Options struct {
	// DefaultPrim names the layer's default prim. Empty leaves it unset.
	DefaultPrim string
	// UpAxis is recorded as layer metadata when set ("Y" or "Z").
	UpAxis string
	Logger *slog.Logger
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

// DroppedProperty is a property that had no attribute representation.
type DroppedProperty struct {
	Node     string     `json:"node"`
	Property string     `json:"property"`
	Kind     scene.Kind `json:"kind"`
	Reason   string     `json:"reason"`
}

// Stats summarises a forward mapping.
type Stats struct {
	Nodes      int
	Attributes int
	Dropped    []DroppedProperty
}

// ToStage defines one prim per node of tree on stage and authors the typed
// attributes of its properties. The whole tree is resolved and validated
// first, so a failure leaves the stage without any new prims.
func ToStage(tree *scene.Tree, stage *usd.Stage, opts Options) (*Stats, error) {
	nodes, err := tree.Resolve()
	if err != nil {
		return nil, err
	}
	for i, n := range nodes {
		if !usd.ValidName(n.Name) {
			return nil, &scene.InvalidNameError{
				Node:   n.Name,
				Index:  i,
				Reason: "not a valid prim identifier (use letters, digits and _, not starting with a digit)",
			}
		}
	}

	log := opts.logger()
	stats := &Stats{}
	for _, n := range nodes {
		prim, err := stage.DefinePrim(usd.Path(n.Path), n.TypeName)
		if err != nil {
			return stats, fmt.Errorf("define %s: %w", n.Path, err)
		}
		stats.Nodes++

		for _, name := range n.PropertyNames() {
			value := n.Properties[name]
			authored, reason, err := author(prim, name, value)
			if err != nil {
				return stats, fmt.Errorf("author %s.%s: %w", n.Path, name, err)
			}
			if !authored {
				d := DroppedProperty{Node: n.Path, Property: name, Reason: reason}
				if value != nil {
					d.Kind = value.Kind()
				}
				stats.Dropped = append(stats.Dropped, d)
				log.Debug("property dropped", "node", n.Path, "property", name, "kind", d.Kind, "reason", reason)
				continue
			}
			stats.Attributes++
		}
	}

	switch {
	case opts.DefaultPrim == AutoDefaultPrim:
		if len(nodes) > 0 {
			stage.SetDefaultPrim(nodes[0].Name)
		}
	case opts.DefaultPrim != "":
		stage.SetDefaultPrim(opts.DefaultPrim)
	}
	if opts.UpAxis != "" {
		stage.SetMetadata("upAxis", usd.Quote(opts.UpAxis))
	}
	return stats, nil
}

// author writes one property as an attribute. Shapes without an attribute
// type are reported back with a reason rather than as an error.
func author(prim *usd.Prim, name string, value scene.PropertyValue) (bool, string, error) {
	var (
		typ usd.ValueType
		v   any
	)
	switch val := value.(type) {
	case scene.Vector3:
		typ, v = usd.TypeFloat3, mgl32.Vec3{float32(val.X), float32(val.Y), float32(val.Z)}
	case scene.Transform:
		typ, v = usd.TypeMatrix4d, mgl64.Translate3D(val.Origin.X, val.Origin.Y, val.Origin.Z)
	case scene.Number:
		typ, v = usd.TypeFloat, float32(val)
	case scene.Text:
		typ, v = usd.TypeString, string(val)
	case scene.Boolean:
		typ, v = usd.TypeBool, bool(val)
	default:
		// Structured, Opaque and nil have no attribute type.
		return false, "unsupported property shape", nil
	}

	if !usd.ValidPropertyName(name) {
		return false, "invalid property name", nil
	}

	attr, err := prim.CreateAttribute(name, typ)
	if err != nil {
		return false, "", err
	}
	if err := attr.Set(v); err != nil {
		return false, "", err
	}
	return true, "", nil
}
