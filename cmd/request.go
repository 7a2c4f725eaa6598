package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/pflag"

	"github.com/kubev2v/contentmap-filter/internal/config"
	"github.com/kubev2v/contentmap-filter/pkg/filter"
)

// requestFlags are the per-command options of a filter request.
type requestFlags struct {
	sort       []string
	properties []string
	limit      uint64
	offset     uint64
}

func (f *requestFlags) register(flags *pflag.FlagSet) {
	flags.StringSliceVar(&f.sort, "sort", nil, "Sort by attribute path, append :desc for descending (e.g. object.name:desc)")
	flags.StringArrayVar(&f.properties, "property", nil, "Named property as prefix.name=value; JSON values are decoded (e.g. data.ids=[1,2])")
	flags.Uint64Var(&f.limit, "limit", 0, "Maximum number of objects (0 for no limit)")
	flags.Uint64Var(&f.offset, "offset", 0, "Number of objects to skip")
}

func (f *requestFlags) request(cfg *config.Configuration) (filter.Request, error) {
	req := newFilterRequest(cfg)
	req.Limit = f.limit
	req.Offset = f.offset

	for _, s := range f.sort {
		path, dir, _ := strings.Cut(s, ":")
		switch strings.ToLower(dir) {
		case "", "asc":
			req.Sort = append(req.Sort, filter.Sort{Path: path})
		case "desc":
			req.Sort = append(req.Sort, filter.Sort{Path: path, Descending: true})
		default:
			return req, fmt.Errorf("invalid sort %q: direction must be asc or desc", s)
		}
	}

	data, err := parseProperties(f.properties)
	if err != nil {
		return req, err
	}
	req.Data = data
	return req, nil
}

// parseProperties reads prefix.name=value pairs. Values that are valid JSON
// are decoded, anything else is kept as a string.
func parseProperties(props []string) (map[string]map[string]any, error) {
	if len(props) == 0 {
		return nil, nil
	}

	data := make(map[string]map[string]any)
	for _, p := range props {
		key, raw, ok := strings.Cut(p, "=")
		if !ok {
			return nil, fmt.Errorf("invalid property %q: expected prefix.name=value", p)
		}
		prefix, name, ok := strings.Cut(key, ".")
		if !ok || prefix == "" || name == "" {
			return nil, fmt.Errorf("invalid property %q: expected prefix.name=value", p)
		}

		var value any = raw
		var decoded any
		if err := json.Unmarshal([]byte(raw), &decoded); err == nil {
			value = decoded
		}

		prefix = strings.ToLower(prefix)
		if data[prefix] == nil {
			data[prefix] = make(map[string]any)
		}
		data[prefix][name] = value
	}
	return data, nil
}
