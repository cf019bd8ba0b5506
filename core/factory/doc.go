// Package factory instantiates pluggable modules (metrics sinks, event log
// stores, business hooks) from configuration. A module is named by a type
// string and configured with a map of raw settings that its factory decodes
// with Decode.
//
//	reg := factory.NewRegistry[eventlog.LogStore]()
//	_ = reg.Register("jsonl", func(conf map[string]any) (eventlog.LogStore, error) {
//	    var c struct{ Path string `json:"path"` }
//	    if err := factory.Decode(conf, &c); err != nil {
//	        return nil, err
//	    }
//	    return eventlog.NewJSONLStore(c.Path)
//	})
//	store, err := reg.Create(factory.ModuleConfig{Type: "jsonl", Conf: map[string]any{"path": "events.jsonl"}})
package factory
