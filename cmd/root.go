package cmd

import (
	"github.com/spf13/cobra"
)

const banner = `         __     __
  _____ |  | __/  |_  ___________
 /     \|  |/ /\   __\/  _ \_  __ \
|  Y Y  \    <  |  | (  <_> )  | \/
|__|_|  /__|_ \ |__|  \____/|__|
      \/     \/                    `

var rootCmd = &cobra.Command{
	Use:   "mktor",
	Short: "A tool to inspect and create torrent files",
	Long:  banner + "\n\nmktor is a tool to create and inspect torrent files.",
}

func init() {
	cobra.EnableCommandSorting = false
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.SilenceUsage = false
	rootCmd.SetUsageTemplate(usageTemplate)

	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(modifyCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(versionCmd)
}

const usageTemplate = `Usage:
  {{.CommandPath}} [command]

Available Commands:{{range .Commands}}{{if (or .IsAvailableCommand (eq .Name "help"))}}
  {{rpad .Name .NamePadding }} {{.Short}}{{end}}{{end}}{{if .HasAvailableLocalFlags}}

Flags:
{{.LocalFlags.FlagUsages | trimTrailingWhitespaces}}{{end}}

Use "{{.CommandPath}} [command] --help" for more information about a command.
`

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
