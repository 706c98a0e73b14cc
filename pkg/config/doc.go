// Package config loads and validates the engine's declarative YAML
// configuration: the persistence settings and the member groups with their
// update policies.
//
// A minimal configuration:
//
//	version: "1"
//	store:
//	  path: heat.db
//	groups:
//	  - name: web
//	    type: test.server
//	    definition: defn-a
//	    target_capacity: 4
//	    update:
//	      max_batch_size: 2
//	      min_in_service: 2
//	      pause_time: 30s
//
// Load rejects unknown fields and validates structural constraints before
// returning; Watch reloads the file on change for long-running processes.
package config
