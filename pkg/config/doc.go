/*
Package config loads the YAML cluster file shared by every googol process.

Every field has a default, so a file only needs the values it changes:

	registry: 10.0.0.5:7000
	log:
	  level: debug
	metrics_addr: 0.0.0.0:9100
	downloader:
	  multicast:
	    max_retries: 5
	    ack_timeout: 3s
	gateway:
	  heartbeat:
	    interval: 5s
	fetch:
	  rate_per_host: 2

Durations are Go duration strings. Command-line flags override file values.
*/
package config
