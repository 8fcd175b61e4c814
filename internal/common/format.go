/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package common

import (
	"fmt"
	"strings"

	"sticker-ledger-go/internal/models"
	"sticker-ledger-go/internal/ton"
)

const (
	DefaultWidth = 80
	WideWidth    = 100
)

func rule(char string, width int) string {
	return strings.Repeat(char, width)
}

// PrintSeparator prints one line of char repeated width times
func PrintSeparator(char string, width int) {
	fmt.Println(rule(char, width))
}

// PrintHeader prints a title framed by double rules, preceded by a blank line
func PrintHeader(title string, width int) {
	fmt.Printf("\n%s\n%s\n%s\n", rule("=", width), title, rule("=", width))
}

// PrintFooter prints a summary line framed like PrintHeader, followed by a blank line
func PrintFooter(message string, width int) {
	fmt.Printf("\n%s\n%s\n%s\n\n", rule("=", width), message, rule("=", width))
}

// PrintBoxSeparator opens a sub-section inside a boxed user or intent block
func PrintBoxSeparator(width int) {
	fmt.Println("├" + rule("─", width))
}

// BoxPrefix returns the tree prefix of a list item
func BoxPrefix(isLast bool) string {
	if isLast {
		return "└  "
	}
	return "│  "
}

// BoxDetailPrefix returns the prefix for continuation lines under a list item
func BoxDetailPrefix(isLast bool) string {
	if isLast {
		return "   "
	}
	return "│  "
}

// FormatArt renders a signed ART delta, e.g. "+100 ART" or "-30 ART"
func FormatArt(delta int64) string {
	if delta > 0 {
		return fmt.Sprintf("+%d ART", delta)
	}
	return fmt.Sprintf("%d ART", delta)
}

// FormatTon renders nanotons as "1.5 TON"
func FormatTon(nano int64) string {
	return ton.FormatNano(nano) + " " + models.CurrencyTon
}

// Truncate shortens long identifiers such as tx hashes for table output
func Truncate(s string, max int) string {
	if len(s) <= max || max < 4 {
		return s
	}
	return s[:max-3] + "..."
}
