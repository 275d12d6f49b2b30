// Package catalog serves named rules loaded from YAML files.
//
// A catalog file lists rules by name:
//
//	rules:
//	  - name: senior_sales
//	    description: Senior members of the sales team
//	    expression: "age > 30 AND department = 'Sales'"
//	  - name: legacy
//	    expression: "tenure >= 10"
//	    enabled: false
//
// The catalog path may be a single file or a directory searched recursively
// for .yaml and .yml files. Loading is all or nothing: every entry must have
// a valid name and expression and names must be unique across files,
// otherwise the whole load fails and the error lists each problem.
//
// Catalog keeps the last successful load as an immutable Snapshot, so a
// broken edit never takes rules away from a running server. Watcher calls
// Reload when files change:
//
//	c := catalog.New(cfg.Catalog.Path, engine, logger)
//	if err := c.Reload(); err != nil {
//	    return err
//	}
//	w, err := catalog.NewWatcher(c, cfg.Catalog.Debounce, logger)
//	if err != nil {
//	    return err
//	}
//	go w.Run(ctx)
package catalog
