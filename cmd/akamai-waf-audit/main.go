// akamai-waf-audit prints the WAF protection posture of every security
// policy in an Akamai account.
package main

import "github.com/locktivity/epack-collector-akamai/internal/cli"

func main() {
	cli.Execute()
}
