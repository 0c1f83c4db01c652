package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hashicorp/go-hclog"
	"github.com/schollz/progressbar/v3"

	"github.com/famomatic/hlsv1/client"
)

func main() {
	var (
		rawURL      = flag.String("url", "", "Master playlist, media playlist or direct media URL")
		output      = flag.String("o", "output.mp4", "Output file path")
		userAgent   = flag.String("user-agent", "", "User-Agent header")
		referer     = flag.String("referer", "", "Referer header (Origin is derived from it)")
		cookie      = flag.String("cookie", "", "Raw Cookie header value")
		cookiesFile = flag.String("cookies-file", "", "Netscape cookies.txt path")
		dub         = flag.Bool("prefer-dub", false, "Prefer variants that look dubbed")
		subs        = flag.Bool("prefer-subs", false, "Prefer variants that look subtitled")
		subLang     = flag.String("sub-lang", "", "Subtitle language code to download (e.g. tr)")
		noSubs      = flag.Bool("no-subs", false, "Skip the subtitle track")
		concurrency = flag.Int("concurrency", 0, "Parallel segment fetches (0 = default)")
		proxy       = flag.String("proxy", "", "Proxy URL")
		verbose     = flag.Bool("verbose", false, "Debug logging")
	)
	flag.Parse()

	if *rawURL == "" {
		fmt.Println("Usage: hlsv1 -url <manifest_url> [-o output.mp4]")
		flag.PrintDefaults()
		os.Exit(1)
	}

	level := hclog.Warn
	if *verbose {
		level = hclog.Debug
	}
	logger := hclog.New(&hclog.LoggerOptions{
		Name:  "hlsv1",
		Level: level,
		Color: hclog.AutoColor,
	})

	c := client.New(client.Config{
		ProxyURL:    *proxy,
		Logger:      logger,
		Concurrency: *concurrency,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d := c.Start(ctx, client.Request{
		URL:        *rawURL,
		OutputPath: *output,
		Headers: client.Headers{
			UserAgent:   *userAgent,
			Referer:     *referer,
			Cookie:      *cookie,
			CookiesFile: *cookiesFile,
		},
		Prefs: client.Preferences{
			PreferDubbedAudio: *dub,
			PreferSubtitles:   *subs,
			SubtitleLanguage:  *subLang,
			SkipSubtitles:     *noSubs,
		},
	})

	var bar *progressbar.ProgressBar
	for ev := range d.Events {
		switch ev := ev.(type) {
		case client.Started:
			logger.Debug("download started", "id", ev.DownloadID(), "url", ev.URL)
		case client.Resolved:
			if ev.Segments > 0 {
				bar = progressbar.NewOptions(ev.Segments,
					progressbar.OptionSetDescription("downloading"),
					progressbar.OptionSetWriter(os.Stderr),
					progressbar.OptionShowCount(),
					progressbar.OptionClearOnFinish(),
				)
			}
			if ev.EstimatedBytes > 0 {
				fmt.Fprintf(os.Stderr, "estimated size: %.1f MiB\n", float64(ev.EstimatedBytes)/(1<<20))
			}
		case client.TrackProgress:
			if bar != nil && ev.Track == client.TrackVideo {
				bar.Set(ev.Completed)
			}
		case client.TrackCompleted:
			if bar != nil && ev.Track == client.TrackVideo {
				bar.Finish()
			}
			fmt.Fprintf(os.Stderr, "%s written: %s\n", ev.Track, ev.Path)
		case client.Completed:
			fmt.Printf("done: %s (%d bytes)\n", ev.Result.OutputPath, ev.Result.Bytes)
		case client.Failed:
			logger.Error("download failed", "error", ev.Err)
			os.Exit(1)
		}
	}
}
