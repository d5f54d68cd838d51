/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

/*
Package config loads session configuration.

Sources, later ones winning:

  - built-in defaults (memory driver)
  - a YAML file
  - a .env file in the working directory
  - ENTITYSESSION_* environment variables

Example:

	driver: sqlite
	sqlite:
	  path: /var/lib/entities.db
	log:
	  level: DEBUG
	  format: json

	ENTITYSESSION_DRIVER=dynamodb ENTITYSESSION_DYNAMODB_TABLE=entities ...
*/
package config
