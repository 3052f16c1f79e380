package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/robert-malhotra/h5tree/hdf5"
	"github.com/robert-malhotra/h5tree/internal/config"
)

func newCreateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "create <file>",
		Short: "Create an empty container",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := config.CreateFile(a.cfg, args[0], a.log)
			if err != nil {
				return err
			}
			return f.Close()
		},
	}
}

func newMkdirCmd(a *app) *cobra.Command {
	var parents bool
	cmd := &cobra.Command{
		Use:   "mkdir <file> <group>...",
		Short: "Create groups",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.update(args[0], func(f *hdf5.File) error {
				for _, p := range args[1:] {
					var err error
					if parents {
						err = mkdirAll(f.Root(), p)
					} else {
						_, err = f.Root().CreateGroup(p)
					}
					if err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&parents, "parents", "p", false, "create missing parent groups and accept existing ones")
	return cmd
}

func mkdirAll(g *hdf5.Group, p string) error {
	for _, name := range hdf5.SplitPath(p) {
		next, err := g.Cd(name)
		if err != nil {
			next, err = g.CreateGroup(name)
			if err != nil {
				return err
			}
		}
		g = next
	}
	return nil
}

func newMkdsCmd(a *app) *cobra.Command {
	var (
		typeName    string
		list        bool
		compression int
		shuffle     bool
		fletcher    bool
	)
	cmd := &cobra.Command{
		Use:   "mkds <file> <dataset>",
		Short: "Create a dataset, creating missing groups along the way",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := hdf5.ParseType(typeName)
			if err != nil {
				return err
			}
			var opts []hdf5.DatasetOption
			if list {
				opts = append(opts, hdf5.AsList())
			}
			if cmd.Flags().Changed("compression") {
				opts = append(opts, hdf5.WithCompression(compression))
			}
			if shuffle {
				opts = append(opts, hdf5.WithShuffle())
			}
			if fletcher {
				opts = append(opts, hdf5.WithFletcher32())
			}
			return a.update(args[0], func(f *hdf5.File) error {
				_, err := f.Root().CreateDataset(args[1], t, opts...)
				return err
			})
		},
	}
	fs := cmd.Flags()
	fs.StringVarP(&typeName, "type", "t", "float64", "element type, e.g. int32, string[16] or float32@(3,3)")
	fs.BoolVar(&list, "list", false, "create a list dataset that grows by appending")
	fs.IntVar(&compression, "compression", 0, "deflate level 0-9 (default from config)")
	fs.BoolVar(&shuffle, "shuffle", false, "shuffle bytes before compression")
	fs.BoolVar(&fletcher, "fletcher32", false, "store a Fletcher-32 checksum")
	return cmd
}

func newRmCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <file> <path>...",
		Short: "Remove groups or datasets",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.update(args[0], func(f *hdf5.File) error {
				root := f.Root()
				for _, p := range args[1:] {
					isDataset, err := root.HasDataset(p)
					if err != nil {
						return err
					}
					if isDataset {
						err = root.RemoveDataset(p)
					} else {
						err = root.RemoveGroup(p)
					}
					if err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}

func newMvCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "mv <file> <from> <to>",
		Short: "Rename or move a group or dataset",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.update(args[0], func(f *hdf5.File) error {
				root := f.Root()
				isDataset, err := root.HasDataset(args[1])
				if err != nil {
					return err
				}
				if isDataset {
					return root.RenameDataset(args[1], args[2])
				}
				return root.RenameGroup(args[1], args[2])
			})
		},
	}
}

func newCpCmd(a *app) *cobra.Command {
	var from string
	cmd := &cobra.Command{
		Use:   "cp <file> <src> <dest>",
		Short: "Deep-copy a group or dataset",
		Long: "Deep-copy a group or dataset. The source is read from <file> unless\n" +
			"--from names another container.",
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.update(args[0], func(dst *hdf5.File) error {
				if from == "" {
					return copyObject(dst, dst, args[1], args[2])
				}
				return a.view(from, func(src *hdf5.File) error {
					return copyObject(src, dst, args[1], args[2])
				})
			})
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "container to copy from")
	return cmd
}

func copyObject(src, dst *hdf5.File, srcPath, dest string) error {
	obj, err := src.Lookup(srcPath)
	if err != nil {
		return err
	}
	switch o := obj.(type) {
	case *hdf5.Group:
		_, err = dst.Root().CopyGroup(o, dest)
	case *hdf5.Dataset:
		_, err = dst.Root().CopyDataset(o, dest)
	default:
		err = fmt.Errorf("cannot copy %T", obj)
	}
	return err
}
