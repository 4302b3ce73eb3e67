// Package loader provides template sources for the engine's lazy partial
// and named-template loading.
//
// Loaders implement template.Loader:
//
//   - MapLoader: in-memory sources
//   - FileLoader: <dir>/<name><suffix> files
//   - RedisLoader: string keys <prefix><name>
//   - Manifest: an HCL file declaring templates, with per-template defaults
//   - Chain: tries loaders in order
//
// Example usage:
//
//	manifest, err := loader.LoadManifest("templates.hcl")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	engine := template.NewEngine(template.WithLoader(loader.Chain{
//	    manifest,
//	    loader.NewFileLoader("/srv/templates", ".hbs"),
//	    loader.NewRedisLoader(redisClient, loader.DefaultRedisPrefix),
//	}))
package loader
