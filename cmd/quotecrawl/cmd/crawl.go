package cmd

import (
	"cmp"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"quotecrawl/lib/configutil"
	"quotecrawl/lib/export"
	"quotecrawl/lib/quotestore"
	"quotecrawl/lib/restyutil"
	"quotecrawl/lib/scrapers/quotes"
	"quotecrawl/lib/telemetry"
	"quotecrawl/lib/util/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

const defaultBaseUrl = "https://quotes.toscrape.com"

type Config struct {
	BaseUrl string `json:"base_url"`
	DataDir string `json:"data_dir"`
	// when set, finished crawls are archived in this sqlite database
	ArchiveDb string `json:"archive_db"`
}

var baseUrlFlag string
var dataDirFlag string

func init() {
	rootCmd.AddCommand(crawlCmd)

	crawlCmd.Flags().StringVar(
		&baseUrlFlag, "base-url", "",
		"root listing page of the site to crawl",
	)
	crawlCmd.Flags().StringVar(
		&dataDirFlag, "out", "",
		"directory the json documents are written to",
	)
}

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Crawl the configured quote site and export quotes.json and authors.json.",
	Run: func(cmd *cobra.Command, args []string) {
		config, err := configutil.ReadConfig[Config]("config.json5")
		if err != nil && !os.IsNotExist(err) {
			serviceutil.Fatal("failed to read config", err)
		}

		baseUrl := cmp.Or(baseUrlFlag, config.BaseUrl, defaultBaseUrl)
		dataDir := cmp.Or(dataDirFlag, config.DataDir, "data")

		if verbose {
			quotes.SetRestyInstrumentOutput(
				restyutil.NewFilesystemOutput(".dev/resty/quotes"),
			)
		}

		client, err := quotes.NewClient(quotes.ClientOptions{
			BaseURL: baseUrl,
		})
		if err != nil {
			serviceutil.Fatal("failed to initialize client", err)
		}
		crawler := quotes.NewCrawler(client)

		ctx := cmd.Context()
		telemetry.InstrumentPerfStats(ctx)
		defer func() {
			err := telemetry.Shutdown(context.Background())
			if err != nil {
				slog.Warn("failed to shut down telemetry", "err", err)
			}
		}()

		started := time.Now()
		allQuotes, allAuthors := crawler.ScrapeAll(ctx)
		finished := time.Now()

		err = export.WriteQuotes(filepath.Join(dataDir, "quotes.json"), allQuotes)
		if err != nil {
			serviceutil.Fatal("failed to write quotes export", err)
		}
		err = export.WriteAuthors(filepath.Join(dataDir, "authors.json"), allAuthors)
		if err != nil {
			serviceutil.Fatal("failed to write authors export", err)
		}

		if config.ArchiveDb != "" {
			sqlite, err := quotestore.OpenDB(config.ArchiveDb)
			if err != nil {
				serviceutil.Fatal("failed to open archive db", err)
			}
			defer sqlite.Close()

			crawlId, err := quotestore.NewStore(sqlite).Push(ctx, quotestore.CrawlResult{
				BaseURL:    baseUrl,
				StartedAt:  started,
				FinishedAt: finished,
				Quotes:     allQuotes,
				Authors:    allAuthors,
			})
			if err != nil {
				serviceutil.Fatal("failed to archive crawl", err)
			}
			slog.Info("archived crawl", "id", crawlId, "db", config.ArchiveDb)
		}

		t := table.NewWriter()
		t.SetStyle(table.StyleRounded)
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Quotes", "Authors", "Duration"})
		t.AppendRow(table.Row{
			len(allQuotes),
			len(allAuthors),
			finished.Sub(started).Round(time.Millisecond),
		})
		t.Render()
	},
}
