package main

import "github.com/LeifuChen/SynthetixFundingRateArbitrage/cmd"

func main() {
	cmd.Execute()
}
