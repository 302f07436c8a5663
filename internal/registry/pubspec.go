package registry

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// pubspecLock mirrors the subset of pubspec.lock this registry needs:
// each dependency's resolved source and version. Dart's actual lock
// format nests per-package entries under "packages"; fields vary by
// source (hosted/git/sdk/path), so descriptions are decoded loosely.
type pubspecLock struct {
	Packages map[string]lockedPackage `yaml:"packages"`
	SDKs     map[string]string        `yaml:"sdks"`
}

type lockedPackage struct {
	Dependency  string                 `yaml:"dependency"`
	Description map[string]any         `yaml:"description"`
	Source      string                 `yaml:"source"`
	Version     string                 `yaml:"version"`
}

func (p lockedPackage) resolvedKey(name string) (Provenance, string) {
	switch p.Source {
	case "hosted":
		return ProvenanceHosted, name + "-" + p.Version
	case "git":
		ref, _ := p.Description["resolved-ref"].(string)
		if len(ref) > 7 {
			ref = ref[:7]
		}
		url, _ := p.Description["url"].(string)
		repo := filepath.Base(url)
		return ProvenanceGit, repo + "-" + ref
	case "sdk":
		return ProvenanceFramework, name
	case "path":
		return ProvenanceLocal, name
	default:
		return ProvenanceHosted, name + "-" + p.Version
	}
}

// DependencyLoadResult is LoadFromPackageConfig's report, spec.md §4.5.
type DependencyLoadResult struct {
	SDKLoaded bool
	SDKVersion string

	FrameworkLoaded []string
	HostedLoaded    []string
	HostedMissing   []string
	GitLoaded       []string
	GitMissing      []string
	LocalLoaded     []string
	LocalMissing    []string
}

// LoadFromPackageConfig parses projectPath/pubspec.lock and attempts to
// load each resolved dependency from its provenance-appropriate cache
// location, tracking loaded vs missing per spec.md §4.5.
func (r *Registry) LoadFromPackageConfig(projectPath string) (DependencyLoadResult, error) {
	var result DependencyLoadResult

	b, err := os.ReadFile(filepath.Join(projectPath, "pubspec.lock"))
	if err != nil {
		return result, err
	}
	var lock pubspecLock
	if err := yaml.Unmarshal(b, &lock); err != nil {
		return result, err
	}

	if v, ok := lock.SDKs["dart"]; ok {
		if _, ok := r.LoadSDK(v); ok {
			result.SDKLoaded = true
			result.SDKVersion = v
		}
	}

	for name, pkg := range lock.Packages {
		prov, key := pkg.resolvedKey(name)
		switch prov {
		case ProvenanceFramework:
			sdkVersion := lock.SDKs["dart"]
			if _, ok := r.LoadFrameworkPackage(sdkVersion, name); ok {
				result.FrameworkLoaded = append(result.FrameworkLoaded, name)
			}
		case ProvenanceHosted:
			if _, ok := r.LoadPackage(name, pkg.Version); ok {
				result.HostedLoaded = append(result.HostedLoaded, name)
			} else {
				result.HostedMissing = append(result.HostedMissing, name)
			}
		case ProvenanceGit:
			if _, ok := r.LoadGitPackage(key); ok {
				result.GitLoaded = append(result.GitLoaded, name)
			} else {
				result.GitMissing = append(result.GitMissing, name)
			}
		case ProvenanceLocal:
			if _, ok := r.LoadLocalPackage(name); ok {
				result.LocalLoaded = append(result.LocalLoaded, name)
			} else {
				result.LocalMissing = append(result.LocalMissing, name)
			}
		}
	}

	return result, nil
}
