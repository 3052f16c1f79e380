package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/robert-malhotra/h5tree/hdf5"
	"github.com/robert-malhotra/h5tree/internal/dtype"
)

// attrEntry is the YAML form of one attribute.
type attrEntry struct {
	Path  string      `yaml:"path"`
	Type  string      `yaml:"type"`
	Value interface{} `yaml:"value,omitempty"`
	Error string      `yaml:"error,omitempty"`
}

func newAttrsCmd(a *app) *cobra.Command {
	var asYAML bool
	cmd := &cobra.Command{
		Use:   "attrs <file>",
		Short: "List every attribute in the container",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			return a.view(args[0], func(f *hdf5.File) error {
				var entries []attrEntry
				err := f.WalkAttrs(func(info hdf5.AttrInfo) error {
					e := attrEntry{Path: info.Path, Type: info.Type.String()}
					if info.Err != nil {
						e.Error = info.Err.Error()
					} else {
						e.Value = yamlValue(info.Value)
					}
					if asYAML {
						entries = append(entries, e)
						return nil
					}
					if e.Error != "" {
						fmt.Fprintf(w, "%s  %s  <%s>\n", e.Path, e.Type, e.Error)
					} else {
						fmt.Fprintf(w, "%s  %s  %v\n", e.Path, e.Type, info.Value)
					}
					return nil
				})
				if err != nil || !asYAML {
					return err
				}
				return writeYAML(w, entries)
			})
		},
	}
	cmd.Flags().BoolVar(&asYAML, "yaml", false, "print attributes as YAML")
	return cmd
}

func newGetattrCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "getattr <file> <object@attr>",
		Short: "Print one attribute value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.view(args[0], func(f *hdf5.File) error {
				v, err := f.ReadAttr(args[1])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), v)
				return nil
			})
		},
	}
}

func newSetattrCmd(a *app) *cobra.Command {
	var typeName string
	cmd := &cobra.Command{
		Use:   "setattr <file> <object@attr> <value>",
		Short: "Create or replace an attribute",
		Long: "Create or replace an attribute. Without --type the value is stored\n" +
			"as int64, float64, bool or string, whichever parses first. With a\n" +
			"shaped --type, elements are separated by commas.",
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			objPath, name, err := hdf5.ParseAttrPath(args[1])
			if err != nil {
				return err
			}
			return a.update(args[0], func(f *hdf5.File) error {
				obj, err := f.Lookup(objPath)
				if err != nil {
					return err
				}
				if typeName == "" {
					return obj.SetAttr(name, inferValue(args[2]))
				}
				t, err := hdf5.ParseType(typeName)
				if err != nil {
					return err
				}
				raw, err := encodeText(t, args[2])
				if err != nil {
					return err
				}
				return obj.WriteAttribute(name, t, raw)
			})
		},
	}
	cmd.Flags().StringVarP(&typeName, "type", "t", "", "attribute type, e.g. uint8 or float32@(3)")
	return cmd
}

func inferValue(s string) interface{} {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return s
}

// encodeText parses comma-separated elements according to t's class and
// encodes them.
func encodeText(t hdf5.Type, s string) ([]byte, error) {
	fields := []string{s}
	if !t.IsScalar() {
		fields = strings.Split(s, ",")
	}

	values := make([]interface{}, len(fields))
	for i, field := range fields {
		if t.Class != dtype.ClassString {
			field = strings.TrimSpace(field)
		}
		var (
			v   interface{}
			err error
		)
		switch t.Class {
		case dtype.ClassBool:
			v, err = strconv.ParseBool(field)
		case dtype.ClassInt:
			v, err = strconv.ParseInt(field, 0, int(t.Size)*8)
		case dtype.ClassUint:
			v, err = strconv.ParseUint(field, 0, int(t.Size)*8)
		case dtype.ClassFloat:
			v, err = strconv.ParseFloat(field, int(t.Size)*8)
		case dtype.ClassComplex:
			v, err = strconv.ParseComplex(field, int(t.Size)*8)
		default:
			v = field
		}
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		values[i] = v
	}

	if t.IsScalar() {
		return dtype.Encode(t, values[0])
	}
	return dtype.Encode(t, values)
}
