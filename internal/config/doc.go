// Package config defines the installer settings and helpers to load,
// validate and save them in YAML format.
//
// Settings name the product, the bundled payload archive and the per-user
// root that receives CustomProjectSystems/<product>. Omitted values fall back
// to the locations next to the running executable and under the local
// application data directory.
package config
