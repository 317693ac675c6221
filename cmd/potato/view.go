package main

import (
	"strings"

	json "github.com/goccy/go-json"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/xdbsoft/potato/view"
)

type viewFlags struct {
	docType    string
	name       string
	keyBy      []string
	properties []string
	conditions string
	reduce     string
	key        string
	startKey   string
	endKey     string
	keys       []string
	limit      int
	skip       int
	descending bool
	noReduce   bool
	group      bool
	raw        bool
}

var vf viewFlags

var viewCmd = &cobra.Command{
	Use:   "view",
	Short: "Query a view of a document type",
	Long: `View compiles the map/reduce source of the view from the flags, installs it
in the design document of the type and queries it. Keys are parsed as JSON,
falling back to plain strings.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		spec, err := vf.spec()
		if err != nil {
			return err
		}
		db, err := openDatabase(cmd.Context())
		if err != nil {
			return err
		}
		res, err := db.View(cmd.Context(), spec)
		if err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), output, printable(res))
	},
}

func (f viewFlags) spec() (view.Spec, error) {
	if f.docType == "" || f.name == "" {
		return view.Spec{}, errors.New("--type and --name are required")
	}

	opts := view.Options{
		Key:        f.keyBy,
		Properties: f.properties,
		Conditions: f.conditions,
		Reduce:     f.reduce,
	}
	switch {
	case f.raw:
		opts.Kind = view.Raw
	case len(f.properties) > 0:
		opts.Kind = view.Properties
	}

	params := view.Params{}
	switch {
	case len(f.keys) > 0:
		keys := make([]interface{}, len(f.keys))
		for i, k := range f.keys {
			keys[i] = parseKey(k)
		}
		params["keys"] = keys
	case f.key != "":
		params["key"] = parseKey(f.key)
	case f.startKey != "" || f.endKey != "":
		r := view.Range{}
		if f.startKey != "" {
			r.Start = parseKey(f.startKey)
		}
		if f.endKey != "" {
			r.End = parseKey(f.endKey)
		}
		params["key"] = r
	}
	if f.limit > 0 {
		params["limit"] = f.limit
	}
	if f.skip > 0 {
		params["skip"] = f.skip
	}
	if f.descending {
		params["descending"] = true
	}
	if f.noReduce {
		params["reduce"] = false
	}
	if f.group {
		params["group"] = true
	}
	return view.New(f.docType, f.name, opts, params), nil
}

func parseKey(s string) interface{} {
	var v interface{}
	if err := json.Unmarshal([]byte(strings.TrimSpace(s)), &v); err != nil {
		return s
	}
	return v
}

func init() {
	rootCmd.AddCommand(viewCmd)
	flags := viewCmd.Flags()
	flags.StringVarP(&vf.docType, "type", "t", "", "document type")
	flags.StringVarP(&vf.name, "name", "n", "", "view name")
	flags.StringSliceVar(&vf.keyBy, "key-by", nil, "properties emitted as key, doc._id when empty")
	flags.StringSliceVar(&vf.properties, "properties", nil, "properties emitted as value, returning partial documents")
	flags.StringVar(&vf.conditions, "conditions", "", "javascript condition added to the type guard")
	flags.StringVar(&vf.reduce, "reduce", "", "reduce function, e.g. _count")
	flags.StringVar(&vf.key, "key", "", "exact key")
	flags.StringVar(&vf.startKey, "startkey", "", "first key of the range")
	flags.StringVar(&vf.endKey, "endkey", "", "last key of the range")
	flags.StringSliceVar(&vf.keys, "keys", nil, "list of keys")
	flags.IntVar(&vf.limit, "limit", 0, "maximum number of rows")
	flags.IntVar(&vf.skip, "skip", 0, "number of rows to skip")
	flags.BoolVar(&vf.descending, "descending", false, "reverse the order")
	flags.BoolVar(&vf.noReduce, "no-reduce", false, "query the map of a reduce view")
	flags.BoolVar(&vf.group, "group", false, "group reduce results by key")
	flags.BoolVar(&vf.raw, "raw", false, "print the rows as returned")
}
