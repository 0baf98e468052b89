// Package factory holds the generic registries behind the configurable
// pieces of the matcher: fallback strategies and metrics sinks. Each entry in
// the config names a type and carries a free-form conf map, which the
// registered factory decodes into its own settings struct.
//
//	reg := factory.NewRegistry[matching.Fallback]()
//	_ = reg.Register("ESCALATE", func(conf map[string]any) (matching.Fallback, error) {
//	    var c struct{ Queue string `json:"queue"` }
//	    if err := factory.Decode(conf, &c); err != nil {
//	        return nil, err
//	    }
//	    return escalate{queue: c.Queue}, nil
//	})
//	fb, err := reg.Create(factory.ModuleConfig{Type: "ESCALATE"})
package factory
