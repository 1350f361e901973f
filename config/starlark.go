package config

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/ZacxDev/mpymake/target"
	"github.com/pkg/errors"
	"go.starlark.net/starlark"
)

// ModuleCache stores Starlark modules loaded via load() so shared
// helper files are executed once per parse.
type ModuleCache struct {
	modules map[string]starlark.StringDict
	mutex   sync.RWMutex
}

func NewModuleCache() *ModuleCache {
	return &ModuleCache{
		modules: make(map[string]starlark.StringDict),
	}
}

func (mc *ModuleCache) Get(key string) (starlark.StringDict, bool) {
	mc.mutex.RLock()
	defer mc.mutex.RUnlock()
	module, ok := mc.modules[key]
	return module, ok
}

func (mc *ModuleCache) Set(key string, module starlark.StringDict) {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()
	mc.modules[key] = module
}

func loadModule(thread *starlark.Thread, module string) (starlark.StringDict, error) {
	cache := thread.Local("moduleCache").(*ModuleCache)

	if cached, ok := cache.Get(module); ok {
		return cached, nil
	}

	filename := module
	if !filepath.IsAbs(filename) {
		filename = filepath.Join(filepath.Dir(thread.Name), filename)
	}

	globals, err := starlark.ExecFile(thread, filename, nil, nil)
	if err != nil {
		return nil, err
	}

	cache.Set(module, globals)
	return globals, nil
}

// ParseTargetFile executes a Starlark target file and returns the
// targets declared in its global `targets` dict. Each entry maps a
// target name to a dict with optional keys: cmd, dir, output, deps,
// phony.
func ParseTargetFile(filename string) (map[string]*target.Target, error) {
	cache := NewModuleCache()
	thread := &starlark.Thread{
		Name: filename,
		Load: loadModule,
	}
	thread.SetLocal("moduleCache", cache)

	globals, err := starlark.ExecFile(thread, filename, nil, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to execute Starlark target file")
	}

	targetsValue, ok := globals["targets"]
	if !ok {
		return nil, errors.Errorf("global 'targets' dict not found in %s", filename)
	}

	targetsDict, ok := targetsValue.(*starlark.Dict)
	if !ok {
		return nil, errors.Errorf("global 'targets' in %s is not a dictionary", filename)
	}

	targets := make(map[string]*target.Target)

	for _, item := range targetsDict.Items() {
		name, ok := item.Index(0).(starlark.String)
		if !ok {
			return nil, errors.Errorf("target names must be strings, got %s", item.Index(0).Type())
		}
		dict, ok := item.Index(1).(*starlark.Dict)
		if !ok {
			continue
		}
		t, err := parseTarget(name.GoString(), dict)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse target %s", name.GoString())
		}
		targets[t.Name] = t
	}

	return targets, nil
}

func parseTarget(name string, dict *starlark.Dict) (*target.Target, error) {
	t := &target.Target{Name: name}

	if cmd, ok, err := getStringValue(dict, "cmd"); err != nil {
		return nil, err
	} else if ok {
		t.Cmd = cmd
	}

	if dir, ok, err := getStringValue(dict, "dir"); err != nil {
		return nil, err
	} else if ok {
		t.Dir = dir
	}

	if output, ok, err := getStringValue(dict, "output"); err != nil {
		return nil, err
	} else if ok {
		t.Output = output
	}

	if deps, ok, err := getStringList(dict, "deps"); err != nil {
		return nil, err
	} else if ok {
		t.Prereqs = deps
	}

	if phony, ok, err := getBooleanValue(dict, "phony"); err != nil {
		return nil, err
	} else if ok {
		t.Phony = phony
	}

	if t.Output == "" && !t.Phony {
		// a target with no output file behaves as phony
		t.Phony = true
	}

	return t, nil
}

func getBooleanValue(dict *starlark.Dict, key string) (bool, bool, error) {
	value, found, err := dict.Get(starlark.String(key))
	if err != nil || !found {
		return false, false, err
	}

	boolValue, ok := value.(starlark.Bool)
	if !ok {
		return false, false, fmt.Errorf("expected bool for key %s, got %T", key, value)
	}

	return bool(boolValue), true, nil
}

func getStringValue(dict *starlark.Dict, key string) (string, bool, error) {
	value, found, err := dict.Get(starlark.String(key))
	if err != nil || !found {
		return "", false, err
	}

	strValue, ok := value.(starlark.String)
	if !ok {
		return "", false, fmt.Errorf("expected string for key %s, got %T", key, value)
	}

	return strValue.GoString(), true, nil
}

func getStringList(dict *starlark.Dict, key string) ([]string, bool, error) {
	value, found, err := dict.Get(starlark.String(key))
	if err != nil || !found {
		return nil, false, err
	}

	list, ok := value.(*starlark.List)
	if !ok {
		return nil, false, fmt.Errorf("expected list for key %s, got %T", key, value)
	}

	var result []string
	iter := list.Iterate()
	defer iter.Done()
	var x starlark.Value
	for iter.Next(&x) {
		str, ok := x.(starlark.String)
		if !ok {
			return nil, false, fmt.Errorf("expected string in list for key %s, got %T", key, x)
		}
		result = append(result, str.GoString())
	}

	return result, true, nil
}
