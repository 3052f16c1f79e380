package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/robert-malhotra/h5tree/hdf5"
)

func newTreeCmd(a *app) *cobra.Command {
	var (
		asYAML    bool
		withAttrs bool
	)
	cmd := &cobra.Command{
		Use:   "tree <file> [group]",
		Short: "Print the group hierarchy",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			start := "/"
			if len(args) == 2 {
				start = args[1]
			}
			return a.view(args[0], func(f *hdf5.File) error {
				g, err := f.Root().Cd(start)
				if err != nil {
					return err
				}
				if asYAML {
					node, err := buildNode(g, withAttrs)
					if err != nil {
						return err
					}
					return writeYAML(cmd.OutOrStdout(), node)
				}
				return printTree(cmd.OutOrStdout(), g, withAttrs)
			})
		},
	}
	cmd.Flags().BoolVar(&asYAML, "yaml", false, "print the tree as YAML")
	cmd.Flags().BoolVarP(&withAttrs, "attrs", "a", false, "include attributes")
	return cmd
}

func printTree(w io.Writer, start *hdf5.Group, withAttrs bool) error {
	base := len(hdf5.SplitPath(start.Path()))
	return hdf5.Walk(start, func(path string, obj interface{}) error {
		depth := len(hdf5.SplitPath(path)) - base
		indent := strings.Repeat("  ", depth)

		var o hdf5.Object
		switch v := obj.(type) {
		case *hdf5.Group:
			name := v.Name() + "/"
			if v.IsRoot() {
				name = "/"
			}
			fmt.Fprintf(w, "%s%s\n", indent, name)
			o = v
		case *hdf5.Dataset:
			fmt.Fprintf(w, "%s%s  %s\n", indent, v.Name(), describeDataset(v))
			o = v
		default:
			return nil
		}

		if !withAttrs {
			return nil
		}
		names, err := o.Attributes()
		if err != nil {
			return err
		}
		for _, name := range names {
			value, err := o.File().ReadAttr(hdf5.JoinAttrPath(path, name))
			if err != nil {
				fmt.Fprintf(w, "%s  @%s  <%v>\n", indent, name, err)
				continue
			}
			fmt.Fprintf(w, "%s  @%s = %v\n", indent, name, value)
		}
		return nil
	})
}

func describeDataset(d *hdf5.Dataset) string {
	parts := []string{d.Type().String()}
	if d.IsList() {
		if n, err := d.Len(); err == nil {
			parts = append(parts, fmt.Sprintf("list[%d]", n))
		} else {
			parts = append(parts, "list[?]")
		}
	}
	if filters := d.Filters(); len(filters) > 0 {
		parts = append(parts, "("+strings.Join(filters, ",")+")")
	}
	return strings.Join(parts, " ")
}

// treeNode is the YAML form of a group or dataset.
type treeNode struct {
	Name       string                 `yaml:"name"`
	Kind       string                 `yaml:"kind"`
	Type       string                 `yaml:"type,omitempty"`
	List       bool                   `yaml:"list,omitempty"`
	Records    uint64                 `yaml:"records,omitempty"`
	Filters    []string               `yaml:"filters,omitempty"`
	Attributes map[string]interface{} `yaml:"attributes,omitempty"`
	Children   []*treeNode            `yaml:"children,omitempty"`
}

func buildNode(g *hdf5.Group, withAttrs bool) (*treeNode, error) {
	node := &treeNode{Name: g.Name(), Kind: "group"}
	if g.IsRoot() {
		node.Name = "/"
	}
	if withAttrs {
		attrs, err := attributeMap(g)
		if err != nil {
			return nil, err
		}
		node.Attributes = attrs
	}

	for _, name := range g.Groups() {
		sub, err := g.Cd(name)
		if err != nil {
			return nil, err
		}
		child, err := buildNode(sub, withAttrs)
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, child)
	}

	for _, name := range g.Datasets() {
		d, err := g.Dataset(name)
		if err != nil {
			return nil, err
		}
		n, err := d.Len()
		if err != nil {
			return nil, err
		}
		child := &treeNode{
			Name:    name,
			Kind:    "dataset",
			Type:    d.Type().String(),
			List:    d.IsList(),
			Records: n,
			Filters: d.Filters(),
		}
		if withAttrs {
			if child.Attributes, err = attributeMap(d); err != nil {
				return nil, err
			}
		}
		node.Children = append(node.Children, child)
	}
	return node, nil
}

func attributeMap(o hdf5.Object) (map[string]interface{}, error) {
	names, err := o.Attributes()
	if err != nil || len(names) == 0 {
		return nil, err
	}
	out := make(map[string]interface{}, len(names))
	for _, name := range names {
		v, err := o.File().ReadAttr(hdf5.JoinAttrPath(o.Path(), name))
		if err != nil {
			return nil, err
		}
		out[name] = yamlValue(v)
	}
	return out, nil
}

// yamlValue replaces values yaml.v3 cannot marshal (complex numbers) with
// their string form.
func yamlValue(v interface{}) interface{} {
	switch v.(type) {
	case complex64, complex128, []complex64, []complex128, [][]complex64, [][]complex128:
		return fmt.Sprint(v)
	}
	return v
}

func writeYAML(w io.Writer, v interface{}) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}
