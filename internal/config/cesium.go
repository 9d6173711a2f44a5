package config

import (
	"encoding/json"
	"maps"
	"path"
	"strings"
)

// CesiumBaseURLGlobal is the global Cesium reads to locate its workers and assets.
const CesiumBaseURLGlobal = "CESIUM_BASE_URL"

// cesiumRuntimeDirs are loaded by Cesium at runtime relative to its base URL
// and cannot be bundled.
var cesiumRuntimeDirs = []string{"Workers", "Assets", "Widgets", "ThirdParty"}

func (c CesiumConfig) enabled() bool {
	return c.Dir != ""
}

// baseURL is the mount point without a trailing slash, "" for the site root.
func (c CesiumConfig) baseURL() string {
	trimmed := strings.Trim(c.BaseURL, "/")
	if trimmed == "" {
		return ""
	}
	return "/" + trimmed
}

// CopyTargets returns the static copy targets, followed by the Cesium runtime
// directories when Cesium is enabled. Sources stay relative to the config dir.
func (c *Config) CopyTargets() []CopyTarget {
	targets := append([]CopyTarget(nil), c.StaticCopy...)
	if !c.Cesium.enabled() {
		return targets
	}

	dest := strings.TrimPrefix(c.Cesium.baseURL(), "/")
	for _, dir := range cesiumRuntimeDirs {
		targets = append(targets, CopyTarget{
			Src:  path.Join(c.Cesium.Dir, dir),
			Dest: dest,
		})
	}
	return targets
}

// Defines returns assets.define with CESIUM_BASE_URL added when Cesium is
// enabled and the file does not set it already.
func (c *Config) Defines() map[string]string {
	defines := maps.Clone(c.Assets.Define)
	if !c.Cesium.enabled() {
		return defines
	}
	if defines == nil {
		defines = map[string]string{}
	}

	if _, ok := defines[CesiumBaseURLGlobal]; !ok {
		quoted, _ := json.Marshal(c.Cesium.baseURL() + "/")
		defines[CesiumBaseURLGlobal] = string(quoted)
	}
	return defines
}

// Stylesheets returns stylesheet URLs the index page links before the bundle's CSS.
func (c *Config) Stylesheets() []string {
	if !c.Cesium.enabled() {
		return nil
	}
	return []string{c.Cesium.baseURL() + "/Widgets/widgets.css"}
}
