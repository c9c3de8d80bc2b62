// Copyright 2025 Alan Matykiewicz
//
// Permission is hereby granted, free of charge, to any person obtaining a copy of
// this software and associated documentation files (the "Software"), to deal in
// the Software without restriction, including without limitation the rights to use,
// copy, modify, merge, publish, distribute, sublicense, and/or sell copies of the
// Software, and to permit persons to whom the Software is furnished to do so,
// subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND,
// EXPRESS OR IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES
// OF MERCHANTABILITY, FITNESS FOR A PARTICULAR PURPOSE AND
// NONINFRINGEMENT. IN NO EVENT SHALL THE AUTHORS OR COPYRIGHT
// HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY,
// WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING
// FROM, OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR
// OTHER DEALINGS IN THE SOFTWARE.

package main

import (
	"errors"
	"io/fs"
	"os"
	"strconv"

	"github.com/goccy/go-yaml"

	"github.com/odev-ai/pdfproc/internal/vector"
)

const defaultPineconeIndex = "rag-turkce-egitim-1536"

type redisConfig struct {
	Addr     string `yaml:"addr"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type serverConfig struct {
	ListenHost  string `yaml:"listen_host"`
	ListenPort  int    `yaml:"listen_port"`
	FrontendURL string `yaml:"frontend_url"`
	EnableDebug bool   `yaml:"enable_debug"`
}

type workerConfig struct {
	Workers int `yaml:"workers"`
}

type vectorStoreConfig struct {
	Provider string `yaml:"provider"`

	PineconeIndex string `yaml:"pinecone_index"`

	QdrantHost       string `yaml:"qdrant_host"`
	QdrantPort       int    `yaml:"qdrant_port"`
	QdrantCollection string `yaml:"qdrant_collection"`
}

type config struct {
	Server serverConfig `yaml:"server"`
	Worker workerConfig `yaml:"worker"`

	Transport   redisConfig       `yaml:"transport"`
	VectorStore vectorStoreConfig `yaml:"vector_store"`

	Embedder string `yaml:"embedder"`
}

// ReadConfig loads the yaml config file and applies environment
// overrides. A missing file is fine, env vars alone fully configure
// the service.
func ReadConfig(path string) (*config, error) {
	conf := &config{
		Server: serverConfig{
			ListenHost:  "0.0.0.0",
			ListenPort:  8000,
			EnableDebug: true,
		},
		Worker: workerConfig{
			Workers: 10,
		},
		Transport: redisConfig{
			Addr: "localhost:6379",
		},
		VectorStore: vectorStoreConfig{
			Provider:         "pinecone",
			PineconeIndex:    defaultPineconeIndex,
			QdrantHost:       "localhost",
			QdrantPort:       6334,
			QdrantCollection: "documents",
		},
		Embedder: "openai",
	}

	file, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	if err == nil {
		if err := yaml.Unmarshal(file, conf); err != nil {
			return nil, err
		}
	}

	conf.applyEnv()
	return conf, nil
}

func (c *config) applyEnv() {
	if v := os.Getenv("HOST"); v != "" {
		c.Server.ListenHost = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.ListenPort = port
		}
	}
	if v := os.Getenv("FRONTEND_URL"); v != "" {
		c.Server.FrontendURL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Transport.Addr = v
	}
	if v := os.Getenv("PINECONE_INDEX_NAME"); v != "" {
		c.VectorStore.PineconeIndex = v
	}
	if v := os.Getenv("VECTOR_PROVIDER"); v != "" {
		c.VectorStore.Provider = v
	}
	if v := os.Getenv("EMBEDDING_PROVIDER"); v != "" {
		c.Embedder = v
	}
}

func (c *config) vectorConfig() vector.Config {
	return vector.Config{
		Provider: c.VectorStore.Provider,

		PineconeAPIKey: os.Getenv("PINECONE_API_KEY"),
		PineconeIndex:  c.VectorStore.PineconeIndex,

		QdrantHost:       c.VectorStore.QdrantHost,
		QdrantPort:       c.VectorStore.QdrantPort,
		QdrantCollection: c.VectorStore.QdrantCollection,
	}
}
