// Command webbuild bundles the dialogue client into web/client.js, which the
// server embeds. Run it from internal/server (go generate does).
package main

import (
	"flag"
	"log"
	"os"
	"path/filepath"

	"github.com/evanw/esbuild/pkg/api"
)

func main() {
	minify := flag.Bool("minify", false, "minify the bundle and drop the inline source map")
	flag.Parse()

	wd, err := os.Getwd()
	if err != nil {
		log.Fatalf("getwd: %v", err)
	}

	entry := filepath.Join(wd, "web", "src", "main.ts")
	out := filepath.Join(wd, "web", "client.js")
	if _, err := os.Stat(entry); err != nil {
		log.Fatalf("entry point: %v", err)
	}

	sourcemap := api.SourceMapInline
	if *minify {
		sourcemap = api.SourceMapNone
	}

	result := api.Build(api.BuildOptions{
		EntryPoints:       []string{entry},
		Outfile:           out,
		AbsWorkingDir:     wd,
		Bundle:            true,
		Format:            api.FormatIIFE,
		Target:            api.ES2018,
		Platform:          api.PlatformBrowser,
		LogLevel:          api.LogLevelInfo,
		Sourcemap:         sourcemap,
		MinifySyntax:      *minify,
		MinifyWhitespace:  *minify,
		MinifyIdentifiers: *minify,
		Write:             true,
		Loader: map[string]api.Loader{
			".ts": api.LoaderTS,
		},
	})
	if len(result.Errors) > 0 {
		for _, message := range result.Errors {
			log.Printf("esbuild error: %s", message.Text)
		}
		log.Fatalf("esbuild failed with %d error(s)", len(result.Errors))
	}
	for _, message := range result.Warnings {
		log.Printf("esbuild warning: %s", message.Text)
	}
}
