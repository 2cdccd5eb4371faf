// agentmarket-token mints an HS256 bearer token for local development and
// testing against a running service. The secret must match the service's
// AGENTMARKET_JWT_SECRET.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/iamaanahmad/agentmarket/internal/auth"
)

func main() {
	address := flag.String("address", "dev-user", "account address (sub claim)")
	roles := flag.String("roles", "", "comma-separated roles, e.g. PlatformAdmin")
	secret := flag.String("secret", os.Getenv("AGENTMARKET_JWT_SECRET"), "HS256 signing secret")
	flag.Parse()

	if *secret == "" {
		fmt.Fprintln(os.Stderr, "error: secret required (flag -secret or AGENTMARKET_JWT_SECRET)")
		os.Exit(2)
	}

	var roleList []string
	for _, r := range strings.Split(*roles, ",") {
		if r = strings.TrimSpace(r); r != "" {
			roleList = append(roleList, r)
		}
	}

	token, err := auth.NewToken(*address, roleList, []byte(*secret))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}
	fmt.Println(token)
}
