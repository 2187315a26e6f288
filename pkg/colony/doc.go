/*
Package colony is the composition root for the module lifecycle
subsystem.

New wires every package in dependency order: the event bus first, then
the resource ledger and tech tree, the module registry, the status
tracker, the sub-module registry, the upgrade engine, and the automation
evaluator. Shutdown tears them down in reverse and persists a final
snapshot when a data directory is configured.

	c, err := colony.New(colony.Config{
		DataDir:     "/var/lib/starhold",
		ManifestDir: "/etc/starhold/manifests",
	})
	if err != nil {
		return err
	}
	c.Start()
	defer c.Shutdown()

The colony also runs a background gauge collector that refreshes the
module, building, and sub-module population metrics every 15 seconds.
*/
package colony
