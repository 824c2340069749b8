// Package config provides configuration parsing for ssrdata servers.
//
// The configuration is stored in ssrdata.json (or ssrdata.yaml) next to
// the server. Missing fields get defaults; the result is validated with
// struct tags.
//
// # Configuration File Structure
//
//	{
//	  "server": {"host": "0.0.0.0", "port": 8080},
//	  "graphql": {
//	    "endpoint": "https://api.example.com/graphql",
//	    "timeout": "5s"
//	  },
//	  "auth": {"tokenCookie": "token"},
//	  "drain": {"concurrency": 8},
//	  "metrics": {"enabled": true, "namespace": "shop"},
//	  "archive": {"enabled": true, "bucket": "snapshots", "region": "eu-west-1"}
//	}
//
// # Usage
//
//	cfg, err := config.Load(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Println("Listening on", cfg.Address())
package config
