// Package config defines the snapkeep configuration file.
//
//	store:
//	  base_dir: ./snapshots
//	  serializer: json        # json, yaml or msgpack
//	  passphrase: ""          # seals snapshot files when set
//	  journal: true
//	catalog:
//	  enabled: true
//	retention:
//	  type: and
//	  policies:
//	    - {type: every, interval: 3}
//	    - {type: at_most, max_entries: 5}
//	log:
//	  level: info
//	  format: text
//
// Values are merged by confloader: defaults, file, SNAPKEEP_ environment
// variables, then command-line flags.
package config
