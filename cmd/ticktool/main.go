package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/kimmove-blip/Stock-sub000/pkg/tick"
)

// ticktool prints the KRX tick band for a price and the normalized
// order prices for both sides. Handy for eyeballing band boundaries.
func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: ticktool <price> [price...]")
		os.Exit(1)
	}

	fmt.Println("=== KRX Tick Inspector ===")
	fmt.Println()

	for _, arg := range os.Args[1:] {
		price, err := strconv.ParseInt(arg, 10, 64)
		if err != nil || price < 1 {
			fmt.Fprintf(os.Stderr, "skipping %q: not a positive price\n", arg)
			continue
		}

		buyPrice, _ := tick.Normalize(price, tick.Buy)
		sellPrice, _ := tick.Normalize(price, tick.Sell)
		up, _ := tick.Step(buyPrice, tick.Buy, 1)
		down, _ := tick.Step(buyPrice, tick.Buy, -1)

		fmt.Printf("가격 %s원\n", formatKRW(price))
		fmt.Printf("   호가단위:    %d원\n", tick.Size(price))
		fmt.Printf("   매수 보정:   %s원\n", formatKRW(buyPrice))
		fmt.Printf("   매도 보정:   %s원\n", formatKRW(sellPrice))
		fmt.Printf("   한 틱 위:    %s원\n", formatKRW(up))
		fmt.Printf("   한 틱 아래:  %s원\n", formatKRW(down))
		fmt.Println()
	}
}

func formatKRW(v int64) string {
	s := strconv.FormatInt(v, 10)
	n := len(s)
	if n <= 3 {
		return s
	}
	out := make([]byte, 0, n+n/3)
	for i, c := range []byte(s) {
		if i > 0 && (n-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, c)
	}
	return string(out)
}
