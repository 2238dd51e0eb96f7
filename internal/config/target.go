package config

import (
	"net/url"
	"strings"
)

// TargetConfig holds the profile of one origin in the configuration file.
type TargetConfig struct {
	// Cookie is sent as the Cookie header on every probe.
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are extra request headers.
	Headers map[string]string `yaml:"headers,omitempty"`

	// Signature identifies the not-found page of this origin.
	Signature string `yaml:"signature,omitempty"`

	// BlockMarkers are added to the default block markers.
	BlockMarkers []string `yaml:"block_markers,omitempty"`

	// Tolerance overrides the size tolerance for this origin.
	Tolerance *int64 `yaml:"tolerance,omitempty"`

	// Strategy overrides the classification strategy for this origin.
	Strategy string `yaml:"strategy,omitempty"`
}

// File represents the structure of the .pathfinder configuration file.
//
//	defaults:
//	  headers:
//	    Accept-Language: en-US
//	targets:
//	  https://example.com:
//	    cookie: "session=abc"
//	    signature: "<h2>Not Found</h2>"
//	  example.org:
//	    tolerance: 50
type File struct {
	// Defaults apply to every origin before its own profile.
	Defaults TargetConfig `yaml:"defaults"`

	// Targets maps an origin URL or a bare host name to its profile.
	Targets map[string]TargetConfig `yaml:"targets"`
}

// Lookup returns the merged profile for origin: the defaults overlaid with
// the profile registered under the full origin or, failing that, its host.
// The second result reports whether an origin-specific profile was found.
func (f *File) Lookup(origin string) (TargetConfig, bool) {
	if f == nil {
		return TargetConfig{}, false
	}

	merged := f.Defaults
	merged.Headers = copyHeaders(f.Defaults.Headers)

	profile, ok := f.Targets[strings.TrimRight(origin, "/")]
	if !ok {
		if u, err := url.Parse(origin); err == nil && u.Host != "" {
			profile, ok = f.Targets[u.Host]
			if !ok {
				profile, ok = f.Targets[u.Hostname()]
			}
		}
	}
	if !ok {
		return merged, false
	}

	if profile.Cookie != "" {
		merged.Cookie = profile.Cookie
	}
	for k, v := range profile.Headers {
		if merged.Headers == nil {
			merged.Headers = make(map[string]string, len(profile.Headers))
		}
		merged.Headers[k] = v
	}
	if profile.Signature != "" {
		merged.Signature = profile.Signature
	}
	merged.BlockMarkers = append(append([]string(nil), merged.BlockMarkers...), profile.BlockMarkers...)
	if profile.Tolerance != nil {
		merged.Tolerance = profile.Tolerance
	}
	if profile.Strategy != "" {
		merged.Strategy = profile.Strategy
	}
	return merged, true
}

func copyHeaders(h map[string]string) map[string]string {
	if len(h) == 0 {
		return nil
	}
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}
