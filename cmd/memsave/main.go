// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Memsave uploads memory comparison runs to a memviewer server.
//
// Usage:
//
//	memsave [-v] [-server url] file...
//
// Each input file is either a raw harness memory log or a reduced JSON
// export written by memcompare -output-json. The files are posted to
// the server's /upload endpoint and memsave prints the plot URL the
// server assigned to each.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

var (
	server  = flag.String("server", "http://localhost:8080", "upload runs to the memviewer at `url`")
	verbose = flag.Bool("v", false, "print verbose log messages")
)

// uploadStatus is the server's response to an /upload POST.
type uploadStatus struct {
	// RunIDs is the list of run IDs assigned to the uploaded
	// files.
	RunIDs []int64 `json:"runids"`
}

// writeOneFile reads name and writes it to mpw.
func writeOneFile(mpw *multipart.Writer, name string) error {
	w, err := mpw.CreateFormFile("file", filepath.Base(name))
	if err != nil {
		return err
	}
	f, err := os.Open(name)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return err
	}
	return nil
}

// upload posts files to the /upload endpoint of the server at url.
func upload(url string, files []string) (*uploadStatus, error) {
	pr, pw := io.Pipe()
	mpw := multipart.NewWriter(pw)

	go func() {
		for _, name := range files {
			if err := writeOneFile(mpw, name); err != nil {
				// Failing the pipe fails the in-flight POST;
				// closing mpw normally here would end the
				// request cleanly and hide the error.
				pw.CloseWithError(err)
				return
			}
		}
		mpw.Close()
		pw.Close()
	}()

	resp, err := http.Post(url+"/upload", mpw.FormDataContentType(), pr)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("upload failed: %v\n%s", resp.Status, body)
	}

	status := new(uploadStatus)
	if err := json.NewDecoder(resp.Body).Decode(status); err != nil {
		return nil, fmt.Errorf("cannot parse upload response: %v", err)
	}
	return status, nil
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage of memsave:
	memsave [flags] file...
`)
	flag.PrintDefaults()
	os.Exit(2)
}

func main() {
	log.SetPrefix("memsave: ")
	log.SetFlags(0)
	flag.Usage = usage
	flag.Parse()

	files := flag.Args()
	if len(files) == 0 {
		log.Fatal("no files to upload")
	}

	start := time.Now()
	status, err := upload(*server, files)
	if err != nil {
		log.Fatal(err)
	}

	if *verbose {
		s := ""
		if len(files) != 1 {
			s = "s"
		}
		log.Printf("%d file%s uploaded in %.2f seconds.\n", len(files), s, time.Since(start).Seconds())
	}
	for _, id := range status.RunIDs {
		fmt.Printf("%s/plot.png?run=%d\n", *server, id)
	}
}
