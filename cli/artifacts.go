package cli

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"airbnb-cleaning/artifact"
)

// NewArtifactsCommand creates the artifacts command group.
func NewArtifactsCommand(cfgFile func() string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "artifacts",
		Short: "Publish and inspect dataset artifacts",
	}

	cmd.AddCommand(newArtifactsPutCommand(cfgFile))
	cmd.AddCommand(newArtifactsListCommand(cfgFile))
	cmd.AddCommand(newArtifactsShowCommand(cfgFile))
	return cmd
}

func newArtifactsPutCommand(cfgFile func() string) *cobra.Command {
	var name, artifactType, description string

	cmd := &cobra.Command{
		Use:   "put <file>",
		Short: "Publish a local file as a new artifact version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(cmd, cfgFile())
			if err != nil {
				return err
			}
			e, err := openEnv(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer e.Close()

			v, err := e.service.Publish(cmd.Context(), name, artifactType, description, args[0])
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), v.Identifier())
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Artifact name")
	cmd.Flags().StringVar(&artifactType, "type", "raw_data", "Artifact type")
	cmd.Flags().StringVar(&description, "description", "", "Artifact description")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newArtifactsListCommand(cfgFile func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "list [name]",
		Short: "List the latest version of every artifact, or every version of one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(cmd, cfgFile())
			if err != nil {
				return err
			}
			e, err := openEnv(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer e.Close()

			var versions []*artifact.Version
			if len(args) == 1 {
				versions, err = e.registry.Versions(cmd.Context(), args[0])
			} else {
				versions, err = e.registry.Latest(cmd.Context())
			}
			if err != nil {
				return err
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"Artifact", "Version", "Type", "Size", "Digest", "Created"})
			for _, v := range versions {
				t.AppendRow(table.Row{v.Name, fmt.Sprintf("v%d", v.Number), v.Type, v.Size,
					truncateDigest(v.Digest), v.CreatedAt.Format("2006-01-02 15:04:05")})
			}
			t.Render()
			return nil
		},
	}
}

func newArtifactsShowCommand(cfgFile func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "show <identifier>",
		Short: "Print the metadata of an artifact version as YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(cmd, cfgFile())
			if err != nil {
				return err
			}
			e, err := openEnv(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer e.Close()

			ref, err := artifact.ParseRef(args[0])
			if err != nil {
				return err
			}
			v, err := e.registry.Resolve(cmd.Context(), ref)
			if err != nil {
				return err
			}

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(v); err != nil {
				return err
			}
			return enc.Close()
		},
	}
}

func truncateDigest(d string) string {
	if len(d) > 12 {
		return d[:12]
	}
	return d
}
