package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"time"

	"cuffie-gateway/sdk/go/cuffie"
)

func main() {
	account := "0x00000000000000000000000000000000000000A1"
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/session/connect", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(cuffie.Session{Connected: true, Provider: "rpc", SelectedAccount: &account})
	})
	mux.HandleFunc("/api/v1/sale/allowance", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(cuffie.Value{Method: "allowance", Value: "10000000000000000000", Formatted: "10"})
	})
	mux.HandleFunc("/api/v1/sale/buy", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(cuffie.Transaction{Method: "BuymyCuffies", Hash: "0xabc", From: account})
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	client, err := cuffie.NewClient(srv.URL, srv.Client())
	if err != nil {
		panic(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	session, err := client.Connect(ctx)
	if err != nil {
		panic(err)
	}
	fmt.Printf("connected as %s via %s\n", *session.SelectedAccount, session.Provider)

	allowance, err := client.Allowance(ctx)
	if err != nil {
		panic(err)
	}
	fmt.Printf("allowance: %s BUSD\n", allowance.Formatted)

	tx, err := client.Buy(ctx, "10", false)
	if err != nil {
		panic(err)
	}
	fmt.Printf("%s submitted: %s\n", tx.Method, tx.Hash)
}
