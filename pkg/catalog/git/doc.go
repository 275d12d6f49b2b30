// Package git keeps a rule catalog in sync with a Git repository.
//
// A Repository clones the configured branch into a local directory and pulls
// it on demand. A Syncer pulls on an interval and reloads the catalog when a
// catalog file changed. When the new rules fail to load, the clone is checked
// out at the last good commit again, so the working tree always matches the
// rules being served:
//
//	repo, err := git.NewRepository(&cfg.Catalog.Git, logger)
//	if err != nil {
//	    return err
//	}
//	if err := repo.Clone(ctx); err != nil {
//	    return err
//	}
//	c := catalog.New(repo.CatalogPath(), engine, logger)
//	if err := c.Reload(); err != nil {
//	    return err
//	}
//	syncer := git.NewSyncer(repo, c, cfg.Catalog.Git.PollInterval, logger)
//	if err := syncer.Start(ctx); err != nil {
//	    return err
//	}
//	defer syncer.Stop()
package git
