package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/TheBestAstroNOT/stencil/internal/version"
	"github.com/TheBestAstroNOT/stencil/pkg/errors"
	"github.com/TheBestAstroNOT/stencil/pkg/filesystem"
	"github.com/TheBestAstroNOT/stencil/pkg/generate"
	"github.com/TheBestAstroNOT/stencil/pkg/logging"
	"github.com/TheBestAstroNOT/stencil/pkg/manifest"
	"github.com/TheBestAstroNOT/stencil/pkg/prompt"
	"github.com/TheBestAstroNOT/stencil/pkg/render"
	"github.com/TheBestAstroNOT/stencil/pkg/schema"
	"github.com/TheBestAstroNOT/stencil/pkg/style"
	"github.com/TheBestAstroNOT/stencil/pkg/verify"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// NewRootCmd creates and returns the root command
func NewRootCmd() *cobra.Command {
	var verbosity int

	rootCmd := &cobra.Command{
		Use:   "stencil",
		Short: "A template variant resolution engine",
		Long: `stencil turns a single template tree into concrete project variants.
A template declares options, conditional content and exclusion rules in
its manifest; stencil resolves a configuration against them and writes
the selected variant as a new project directory.`,
		Version: version.Version,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Setup logging based on verbosity
			logging.SetupLogger(verbosity)
			log.Debug().Str("command", cmd.Name()).Msg("Command started")
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		DisableAutoGenTag: true,
	}

	// Global flags
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "Increase verbosity (-v INFO, -vv DEBUG, -vvv TRACE)")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newGenerateCmd())
	rootCmd.AddCommand(newValidateCmd())
	rootCmd.AddCommand(newOptionsCmd())
	rootCmd.AddCommand(newVerifyCmd())

	return rootCmd
}

// parseDefines turns repeated --define name=value flags into an
// override map. Booleans may also be given bare: --define bench means
// bench=true.
func parseDefines(defines []string) (map[string]string, error) {
	if len(defines) == 0 {
		return nil, nil
	}
	overrides := make(map[string]string, len(defines))
	for _, d := range defines {
		name, value, found := strings.Cut(d, "=")
		if !found {
			value = "true"
		}
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, errors.Newf(errors.ErrInvalidInput, "malformed define %q", d)
		}
		overrides[name] = value
	}
	return overrides, nil
}

func newRenderer() *style.TerminalRenderer {
	return style.NewTerminalRenderer(style.DetectFormat(os.Stdout))
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long:  `Print detailed version information including commit hash and build date`,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("stencil version %s\n", version.Version)
			if version.Commit != "" {
				fmt.Printf("Commit: %s\n", version.Commit)
			}
			if version.Date != "" {
				fmt.Printf("Built:  %s\n", version.Date)
			}
		},
	}
}

func newGenerateCmd() *cobra.Command {
	var (
		defines     []string
		name        string
		interactive bool
		runVerify   bool
		dryRun      bool
	)

	cmd := &cobra.Command{
		Use:   "generate <template-dir> [output-dir]",
		Short: "Generate a project variant from a template",
		Long: `Generate resolves a configuration against the template's option schema
and writes the selected variant to the output directory.

Values come from --define flags, interactive prompts (with -i on a
terminal) and manifest defaults, in that order. The run is atomic: it
either writes the complete project or nothing at all.

When no output directory is given, the project name is used.`,
		Args: cobra.RangeArgs(1, 2),
		Example: `  # Generate with defaults
  stencil generate ./tpl my-project

  # Pin options on the command line
  stencil generate ./tpl my-project --define bench=false --define license=mit

  # Prompt for everything not defined
  stencil generate ./tpl --name my-project -i`,
		RunE: func(cmd *cobra.Command, args []string) error {
			overrides, err := parseDefines(defines)
			if err != nil {
				return err
			}
			if name != "" {
				if overrides == nil {
					overrides = make(map[string]string)
				}
				if _, ok := overrides["project-name"]; !ok {
					overrides["project-name"] = name
				}
			}

			outputDir := name
			if len(args) == 2 {
				outputDir = args[1]
			}
			if outputDir == "" {
				return errors.New(errors.ErrInvalidInput,
					"no output directory: pass one or set --name")
			}

			var prompter schema.Prompter
			if interactive {
				if isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd()) {
					prompter = prompt.NewConsole()
				} else {
					fmt.Fprintln(os.Stderr, "Warning: stdin is not a terminal, ignoring --interactive")
				}
			}

			log.Info().
				Str("template", args[0]).
				Str("output", outputDir).
				Bool("dry_run", dryRun).
				Msg("Generating project")

			fsys := filesystem.NewOS()
			result, err := generate.Run(fsys, generate.Request{
				TemplateDir: args[0],
				OutputDir:   outputDir,
				Overrides:   overrides,
				Prompter:    prompter,
				DryRun:      dryRun,
			})
			if err != nil {
				return err
			}

			renderer := newRenderer()
			fmt.Println(renderer.RenderSummary(result, dryRun))

			if runVerify && !dryRun {
				report, err := verify.Run(fsys, outputDir, result.Delimiters)
				if err != nil {
					return err
				}
				fmt.Println(renderer.RenderReport(report))
				return report.Err()
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&defines, "define", "d", nil, "Set an option (name=value, repeatable)")
	cmd.Flags().StringVarP(&name, "name", "n", "", "Project name (shorthand for --define project-name=...)")
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Prompt for options that have no --define")
	cmd.Flags().BoolVar(&runVerify, "verify", false, "Verify the generated tree after writing it")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Resolve and render without writing anything")

	return cmd
}

func newValidateCmd() *cobra.Command {
	var defines []string

	cmd := &cobra.Command{
		Use:   "validate <template-dir>",
		Short: "Validate a template without generating anything",
		Long: `Validate loads the manifest, resolves the configuration and renders
every included file in memory. It reports the first problem a real run
would hit: malformed expressions, unknown placeholders, bad overrides.`,
		Args: cobra.ExactArgs(1),
		Example: `  # Check a template against its defaults
  stencil validate ./tpl

  # Check a specific configuration
  stencil validate ./tpl --define bench=false`,
		RunE: func(cmd *cobra.Command, args []string) error {
			overrides, err := parseDefines(defines)
			if err != nil {
				return err
			}

			result, err := generate.Validate(filesystem.NewOS(), args[0], overrides)
			if err != nil {
				return err
			}

			fmt.Printf("Template %q is valid: %d files, %d excluded\n",
				result.TemplateName, len(result.Files), len(result.Excluded))
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&defines, "define", "d", nil, "Set an option (name=value, repeatable)")

	return cmd
}

func newOptionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "options <template-dir>",
		Short: "List the options a template declares",
		Args:  cobra.ExactArgs(1),
		Example: `  # Show what a template can be configured with
  stencil options ./tpl`,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := manifest.Load(filesystem.NewOS(), args[0])
			if err != nil {
				return err
			}
			s, err := m.Schema()
			if err != nil {
				return err
			}

			fmt.Println(newRenderer().RenderOptions(s.Options()))
			return nil
		},
	}
}

func newVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <dir>",
		Short: "Check a generated tree for leftover markers and broken files",
		Long: `Verify walks a generated project and checks that no template markers
survived rendering and that structured files (JSON, TOML, YAML, XML)
still parse.`,
		Args: cobra.ExactArgs(1),
		Example: `  # Verify a generated project
  stencil verify my-project`,
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := verify.Run(filesystem.NewOS(), args[0], render.DefaultDelimiters())
			if err != nil {
				return err
			}
			fmt.Println(newRenderer().RenderReport(report))
			return report.Err()
		},
	}
}
