// Package config provides configuration management for webauthz.
//
// Configuration is loaded from a single directory containing config.yaml.
// The default directory is ~/.config/webauthz; commands accept --config to
// point elsewhere.
//
// # Precedence
//
// Later sources win:
//  1. Built-in defaults (GetDefaultConfig)
//  2. config.yaml in the configuration directory
//  3. WEBAUTHZ_* environment variables, including those set by a .env file
//     in the configuration directory or the working directory
//
// Variables already present in the environment are never replaced by a .env
// file.
//
// # File Format
//
//	client:
//	  name: Contacts
//	  grantRedirectURI: https://contacts.example/v1/grant
//	  httpTimeout: 30s
//	server:
//	  listenAddr: ":8080"
//	  userHeader: X-Webauthz-User
//	store:
//	  type: redis        # memory, redis, postgres or sqlite
//	  dsn: ""            # postgres or sqlite data source name
//	  redis:
//	    addr: localhost:6379
//	    password: ""
//	    db: 0
//	log:
//	  level: info
//	  format: text   # or json
//
// Validation failures are reported as a ConfigurationError whose
// DetailedError lists every offending field.
package config
