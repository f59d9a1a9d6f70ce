// GridWatch - Weather and Power Telemetry Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gridwatch

// Package config loads GridWatch configuration with Koanf v2.
//
// Sources are layered, later ones winning:
//
//  1. defaults from defaultConfig()
//  2. an optional YAML file (CONFIG_PATH, ./config.yaml, /etc/gridwatch/config.yaml)
//  3. environment variables
//
// A .env file in the working directory is loaded into the environment first,
// without overriding variables that are already set.
//
// Environment names are mapped explicitly (see envMappings) so the names the
// existing deployment uses keep working: API_USER, API_PASSWORD, API_AUTH_URL,
// API_DATA_URLS, DB_HOST, DB_PORT, DB_USER, DB_PASSWORD, DB_NAME,
// SV_UDP_HOST, SV_UDP_PORT, BACKEND_URL, BUFFER_SIZE, PORT.
//
// Example YAML:
//
//	upstream:
//	  auth_url: https://stations.example.com/auth/login
//	  data_urls: '{"quintay":"https://stations.example.com/data/quintay/latest"}'
//	  required_metrics: [temperatura, humedad, presion]
//	nats:
//	  embedded_server: true
//	  store_dir: /data/nats
//	database:
//	  driver: duckdb
//	  path: /data/gridwatch.duckdb
package config
