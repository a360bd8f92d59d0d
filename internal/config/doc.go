// Package config loads server configuration from YAML files.
//
// Values of the form ${VAR_NAME} are expanded from the environment before
// parsing, which keeps secrets like the JWT signing key out of the file
// itself. Duration fields are written as Go duration strings ("24h",
// "30m") and parsed at load time.
//
// A minimal configuration:
//
//	server:
//	  http_addr: ":8080"
//	database:
//	  path: "./data/subletify.db"
//	auth:
//	  jwt_secret: "${SUBLETIFY_JWT_SECRET}"
package config
