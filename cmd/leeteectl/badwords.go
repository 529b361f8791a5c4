package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"leetee/internal/storage"
)

var (
	badWordsFile string
	badWordsURL  string
)

var badWordsCmd = &cobra.Command{
	Use:   "bad-words",
	Short: "Load the word list used to flag unkind free-text answers",
	Long: `Loads words into the bad_words table, one per line. With --file the list is
read from disk; otherwise it is downloaded from --url (default: BAD_WORDS_URL
or the community list). Requires the sql storage backend.`,
	Args: cobra.NoArgs,
	RunE: runBadWords,
}

func init() {
	badWordsCmd.Flags().StringVarP(&badWordsFile, "file", "f", "", "Word list file")
	badWordsCmd.Flags().StringVar(&badWordsURL, "url", "", "Word list URL")
}

func runBadWords(cmd *cobra.Command, args []string) error {
	backend, err := storage.Open(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}
	defer backend.Close()
	if backend.DB == nil {
		return errors.New("bad words need the sql storage backend")
	}

	var n int
	if badWordsFile != "" {
		f, err := os.Open(badWordsFile)
		if err != nil {
			return err
		}
		defer f.Close()
		n, err = backend.DB.LoadBadWords(cmd.Context(), f)
		if err != nil {
			return err
		}
	} else {
		url := badWordsURL
		if url == "" {
			url = cfg.BadWordsURL
		}
		n, err = backend.DB.SeedBadWords(cmd.Context(), url)
		if err != nil {
			return err
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Added %d words\n", n)
	return nil
}
