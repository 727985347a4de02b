// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

/*
Prodbot is a Telegram bot that replies with a product link for a product
number.

The products are read from a Google Sheets worksheet on every request. The
first row of the worksheet is a header row. A product is matched by its
number, and the reply includes its name and link.

# Usage

	$ prodbot [flags...] [run]
	$ prodbot [flags...] lookup <number>

The run command, also invoked when no command is given, starts the bot. The
lookup command looks up a single product and prints the reply to stdout.

In the default mode prodbot receives updates through long polling. If HOST is
set, it registers a webhook at https://<HOST>/telegram instead and receives
updates there. Webhook mode requires TG_SECRET.

# Columns

Column names are matched case-sensitively. The first column with a non-empty
value wins:

  - Product number: product_no, Product No, product_number, Product Number.
  - Link: product_link, Product Link, link, URL, url.
  - Name: product_name, Product Name, name, Name.

# Environment Variables

  - ADDR: Address to listen on for HTTP (webhook, /health and /debug/).
    Defaults to localhost:3000.
  - BOT_TOKEN: Accepted instead of TG_TOKEN.
  - CONFIG: Path to an optional config.star file.
  - FETCH_TIMEOUT: How long to wait for the worksheet, such as "10s".
  - HOST: The bot domain used for setting up the webhook.
  - SERVICE_ACCOUNT_KEY: Google service account key in JSON. If not set,
    the key is read from the file passed with -credentials.
  - SHEET: Worksheet title. Defaults to the first worksheet.
  - SPREADSHEET_ID: Spreadsheet ID.
  - SPREADSHEET_NAME: Spreadsheet name, used when SPREADSHEET_ID is not set.
    Defaults to product_list.
  - TG_SECRET: The secret token used to validate Telegram Bot API updates.
  - TG_TOKEN: The Telegram Bot API token.

The service account must have read access to the spreadsheet.

# Configuration

The config.star file is a [Starlark] program that can override column names
and replies:

	aliases = {
	    "number": ["SKU"],
	    "link": ["Shop URL"],
	}

	replies = {
	    "welcome": "Hi! Send me a SKU.",
	    "found": "**{{.Name}}** ({{.Number}}): {{.Link}}",
	    "no_link": "No link for this one yet.",
	    "not_found": "Unknown SKU.",
	    "unavailable": "Try again later.",
	}

Replies are Markdown. The found reply is a [text/template] with .Name,
.Number and .Link fields. Field values are inserted after the Markdown is
converted, so they are sent exactly as they appear in the table.

# Debug Interface

Prodbot serves a debug interface at /debug/ on ADDR. /debug/logs displays
the last 300 lines of logs, streamed automatically. The debug interface only
answers requests from loopback addresses, unless the -debug flag is set.

[Starlark]: https://starlark-lang.org
*/
package main

import (
	_ "embed"

	"go.astrophena.name/prodbot/internal/cli"
)

//go:embed doc.go
var doc []byte

func init() { cli.SetDocComment(doc) }
