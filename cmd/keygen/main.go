// Command keygen mints an XJP API key for a tenant. The raw key is printed
// exactly once; only its hash is stored.
package main

import (
	"flag"
	"fmt"
	"os"

	_ "github.com/joho/godotenv/autoload"

	"github.com/xjp-ai/xjp-gateway/model"
)

func main() {
	tenant := flag.String("tenant", "", "tenant id the key belongs to (required)")
	description := flag.String("description", "", "free-form description")
	rpm := flag.Int("rpm", 0, "requests per minute (0 takes the default)")
	rpd := flag.Int("rpd", 0, "requests per day (0 takes the default)")
	flag.Parse()

	if *tenant == "" {
		fmt.Fprintln(os.Stderr, "keygen: -tenant is required")
		flag.Usage()
		os.Exit(2)
	}

	if err := model.InitDB(); err != nil {
		fmt.Fprintf(os.Stderr, "keygen: %+v\n", err)
		os.Exit(1)
	}
	defer func() { _ = model.CloseDB() }()

	key, rawKey, err := model.CreateKey(*tenant, *description, *rpm, *rpd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "keygen: %+v\n", err)
		os.Exit(1)
	}

	fmt.Printf("key id:     %s\n", key.Id)
	fmt.Printf("tenant:     %s\n", key.TenantId)
	fmt.Printf("rpm / rpd:  %d / %d\n", key.RateLimitRPM, key.RateLimitRPD)
	fmt.Printf("api key:    %s\n", rawKey)
	fmt.Println("store the api key now; it cannot be recovered later")
}
