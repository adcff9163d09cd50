package cmd

import (
	"fmt"
	"path"

	"github.com/mediascout/mediascout/pkg/classify"
	"github.com/mediascout/mediascout/pkg/match"

	"github.com/spf13/cobra"
)

// classifyCmd represents the classify command
var classifyCmd = &cobra.Command{
	Use:   "classify <path>...",
	Short: "classify media file paths",
	Long:  `print the file type and any detected episode numbering for each path`,
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		for _, p := range args {
			t := classify.Classify(p)
			fmt.Printf("%s\t%s", p, t)

			if t == classify.Video {
				r := match.Detect(p, path.Base(path.Dir(p)))
				if r.Resolved() {
					fmt.Printf("\tseason=%d episodes=%v confidence=%s", r.Season, r.Episodes, r.Confidence)
					if r.Title != "" {
						fmt.Printf(" title=%q", r.Title)
					}
				} else {
					fmt.Printf("\tunresolved")
				}
			}
			fmt.Println()
		}
	},
}

func init() {
	rootCmd.AddCommand(classifyCmd)
}
