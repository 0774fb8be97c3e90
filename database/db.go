/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package database

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	_ "github.com/lib/pq"

	"github.com/paysplit/royalty/config"
	"github.com/paysplit/royalty/internal/cache"
)

// Ensure the instance is not accessible outside the package.
var instance *Datasource
var once sync.Once

// Datasource is the postgres implementation of IDataSource.
type Datasource struct {
	Conn     *sql.DB
	Cache    cache.Cache
	CacheTTL time.Duration
}

func NewDataSource(configuration *config.Configuration, c cache.Cache) (IDataSource, error) {
	con, err := GetDBConnection(configuration)
	if err != nil {
		return nil, err
	}
	con.Cache = c
	con.CacheTTL = time.Duration(configuration.Cache.TTL) * time.Second
	return con, nil
}

// GetDBConnection provides a global access point to the instance and initializes it if it's not already.
func GetDBConnection(configuration *config.Configuration) (*Datasource, error) {
	var err error
	once.Do(func() {
		con, errConn := ConnectDB(configuration.DataSource.Dns)
		if errConn != nil {
			err = errConn
			return
		}
		instance = &Datasource{Conn: con}
	})
	if err != nil {
		return nil, err
	}
	return instance, nil
}

// ConnectDB opens the postgres pool and waits for the server with a bounded backoff.
// The schema is managed by the migrate command.
func ConnectDB(dns string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dns)
	if err != nil {
		return nil, err
	}

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = 15 * time.Second
	err = backoff.RetryNotify(db.Ping, policy, func(err error, next time.Duration) {
		log.Printf("database not reachable, retrying in %v: %v", next, err)
	})
	if err != nil {
		log.Printf("database connection error: %v", err)
		_ = db.Close()
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}
