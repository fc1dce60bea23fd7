package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jbweber/molecule-virtup/internal/config"
	"github.com/jbweber/molecule-virtup/internal/libvirt"
	"github.com/jbweber/molecule-virtup/internal/naming"
	"github.com/jbweber/molecule-virtup/internal/storage"
)

// Image management commands
var imageCmd = &cobra.Command{
	Use:   "image",
	Short: "Manage template base images",
	Long: `Manage the base OS images templates are built from.

A template named "generic-centos-8" is backed by the image
generic-centos-8.qcow2 in the virtup-images pool.`,
}

func init() {
	imageCmd.AddCommand(imageImportCmd)
	imageCmd.AddCommand(imageListCmd)
	imageCmd.AddCommand(imageDeleteCmd)
	imageCmd.AddCommand(imageInfoCmd)
}

// withStorage connects to the scenario's libvirt URI and runs fn with a
// storage manager whose default pools exist.
func withStorage(ctx context.Context, fn func(mgr *storage.Manager) error) error {
	scenario, err := config.LoadScenario(scenarioFile)
	if err != nil {
		return fmt.Errorf("failed to load scenario: %w", err)
	}

	client, err := libvirt.ConnectURI(ctx, libvirtURI(scenario.Driver.Options), 0)
	if err != nil {
		return fmt.Errorf("failed to connect to libvirt: %w", err)
	}
	defer func() {
		if closeErr := client.Close(); closeErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close libvirt connection: %v\n", closeErr)
		}
	}()

	mgr := storage.NewManager(client.Libvirt())
	if err := mgr.EnsureDefaultPools(ctx); err != nil {
		return fmt.Errorf("failed to ensure default pools: %w", err)
	}
	return fn(mgr)
}

var imageImportCmd = &cobra.Command{
	Use:   "import <source-path> <template>",
	Short: "Import a base image for a template",
	Long: `Import a qcow2 or raw disk image from a local file as the base image of
a template.

Example:
  molecule-virtup image import ./CentOS-8-GenericCloud.qcow2 generic-centos-8`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		sourcePath, template := args[0], args[1]
		if err := naming.ValidateName(template); err != nil {
			return err
		}

		return withStorage(cmd.Context(), func(mgr *storage.Manager) error {
			imageName := naming.BaseImage(template)
			exists, err := mgr.ImageExists(cmd.Context(), imageName)
			if err != nil {
				return fmt.Errorf("failed to check if image exists: %w", err)
			}
			if exists {
				return fmt.Errorf("image %s already exists", imageName)
			}

			fmt.Printf("Importing image from %s as %s...\n", sourcePath, imageName)
			name, err := mgr.ImportImage(cmd.Context(), sourcePath, imageName)
			if err != nil {
				return fmt.Errorf("failed to import image: %w", err)
			}

			fmt.Printf("✓ Image %s imported successfully\n", name)
			return nil
		})
	},
}

var imageListCmd = &cobra.Command{
	Use:   "list",
	Short: "List base images",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := newFormatter()
		if err != nil {
			return err
		}

		return withStorage(cmd.Context(), func(mgr *storage.Manager) error {
			images, err := mgr.ListImages(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list images: %w", err)
			}

			out, err := f.FormatImages(images)
			if err != nil {
				return err
			}
			fmt.Print(out)
			return nil
		})
	},
}

var imageDeleteCmd = &cobra.Command{
	Use:   "delete <template>",
	Short: "Delete the base image of a template",
	Long: `Delete the base image of a template.

Warning: templates and instances backed by the image become unusable.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		imageName := naming.BaseImage(args[0])

		return withStorage(cmd.Context(), func(mgr *storage.Manager) error {
			exists, err := mgr.ImageExists(cmd.Context(), imageName)
			if err != nil {
				return fmt.Errorf("failed to check if image exists: %w", err)
			}
			if !exists {
				return fmt.Errorf("image %s not found", imageName)
			}

			if err := mgr.DeleteImage(cmd.Context(), imageName); err != nil {
				return fmt.Errorf("failed to delete image: %w", err)
			}

			fmt.Printf("✓ Image %s deleted successfully\n", imageName)
			return nil
		})
	},
}

var imageInfoCmd = &cobra.Command{
	Use:   "info <template>",
	Short: "Show the base image of a template",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		imageName := naming.BaseImage(args[0])

		return withStorage(cmd.Context(), func(mgr *storage.Manager) error {
			info, err := mgr.GetVolumeInfo(cmd.Context(), storage.DefaultImagesPool, imageName)
			if err != nil {
				return fmt.Errorf("failed to get image %s: %w", imageName, err)
			}

			fmt.Printf("Image: %s\n", info.Name)
			fmt.Printf("Pool: %s\n", info.Pool)
			fmt.Printf("Capacity: %.2f GiB (%d bytes)\n", info.CapacityGB(), info.Capacity)
			fmt.Printf("Allocation: %.2f GiB (%d bytes)\n", info.AllocationGB(), info.Allocation)
			fmt.Printf("Path: %s\n", info.Path)
			return nil
		})
	},
}
