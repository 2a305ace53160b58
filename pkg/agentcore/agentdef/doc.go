// Package agentdef loads and stores agent definitions.
//
// A Definition names an agent, its tick interval, and free-form settings.
// Definitions are read from YAML or JSON files with LoadFile or FileSource,
// indexed in memory by a Registry, and persisted through a Store.
//
// Two stores are provided:
//
//   - MemoryStore keeps definitions in process memory.
//   - SQLiteStore persists definitions with the pure Go modernc.org/sqlite driver.
//
// Every save of an existing name increments its version:
//
//	store, err := agentdef.NewSQLiteStore("./state/agents.db")
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	def, err := agentdef.LoadFile(ctx, "agents/watcher.yaml")
//	if err != nil {
//	    return err
//	}
//	err = store.Save(ctx, def)
package agentdef
