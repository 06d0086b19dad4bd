// Package capi documents, without implementing, the C-callable entry
// point a host process would use to embed this hub:
//
//	int socks_hub_run(const char *config_json);  // runs until stopped; returns an exit code
//	int socks_hub_stop(void);                    // posts the stop signal to a running hub
//
// Building this surface (cgo export comments, a C header, a stable ABI
// for StartupConfig) is out of scope beyond acknowledging its existence.
// A real implementation would wrap cmd/socks-hub's run function behind
// //export-annotated wrappers that marshal config_json into a
// config.Result and post context cancellation from socks_hub_stop.
package capi
