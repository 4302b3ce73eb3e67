// Package config provides configuration management for the template worker.
//
// Configuration is loaded from environment variables and validated on startup.
// Engine settings (delimiters, strict mode, recursion limit, escaping) and
// template sources (directory, HCL manifest, Redis prefix) use the TEMPLATE_
// prefix; stream, Redis and LLM settings share names with the other DAGo workers.
//
// Example usage:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg)
package config
