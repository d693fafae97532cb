package main

import (
	"crypto/subtle"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/apibillme/cache"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

type Store struct {
	db        *sql.DB
	log       *zap.Logger
	userCache cache.Cache
}

const reqTable string = `
  CREATE TABLE IF NOT EXISTS reqdata (
      httpdata BLOB NOT NULL,
      hash TEXT NOT NULL UNIQUE,
      expiry INT NOT NULL
  )
`

const userTable string = `
  CREATE TABLE IF NOT EXISTS users (
      user TEXT NOT NULL UNIQUE,
      hash TEXT NOT NULL,
      level INT NOT NULL
  )
`

const dbFile string = "data/cache.db"

func NewStore(filename string, logger *zap.Logger) (*Store, error) {
	if filename == "" {
		filename = dbFile
	}
	db, err := sql.Open("sqlite3", "file:"+filename)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", filename, err)
	}
	// sqlite allows a single writer
	db.SetMaxOpenConns(1)
	for _, stmt := range []string{reqTable, userTable} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("create schema: %w", err)
		}
	}

	return &Store{
		db:        db,
		log:       logger.Named("store"),
		userCache: cache.New(256, cache.WithTTL(1*time.Hour)),
	}, nil
}

func (store *Store) Close() error {
	return store.db.Close()
}

func (store *Store) DeleteBefore(expiry int64) (int64, error) {
	res, err := store.db.Exec("DELETE FROM reqdata WHERE expiry < ?", expiry)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (store *Store) GetResponse(hash string) ([]byte, bool) {
	row := store.db.QueryRow("SELECT httpdata FROM reqdata WHERE hash = ? AND expiry >= ?", hash, time.Now().Unix())
	var data []byte
	err := row.Scan(&data)
	if err == nil {
		return data, true
	}
	if !errors.Is(err, sql.ErrNoRows) {
		store.log.Warn("read cached response", zap.Error(err))
	}
	return nil, false
}

func (store *Store) StoreResponse(hash string, res []byte, expiry int64) error {
	_, err := store.db.Exec("INSERT OR REPLACE INTO reqdata VALUES (?,?,?)",
		res,
		hash,
		expiry,
	)
	return err
}

// AddUser creates or replaces a server user with an argon2id password hash.
func (store *Store) AddUser(user string, pass string, level int) error {
	if user == "" || pass == "" {
		return errors.New("user and password are required")
	}
	hash, err := argon2id.CreateHash(pass, argon2id.DefaultParams)
	if err != nil {
		return err
	}
	_, err = store.db.Exec("INSERT OR REPLACE INTO users VALUES (?,?,?)", user, hash, level)
	return err
}

func (store *Store) TestUser(user string, pass string) bool {
	userPass, ok := store.userCache.Get(user)
	if ok && 1 == subtle.ConstantTimeCompare([]byte(userPass.(string)), []byte(pass)) {
		return true
	}
	row := store.db.QueryRow("SELECT hash FROM users WHERE user = ?", user)
	var hash string
	err := row.Scan(&hash)
	if err == nil {
		match, err := argon2id.ComparePasswordAndHash(pass, hash)
		if err != nil {
			store.log.Warn("error comparing password hashes", zap.Error(err))
			return false
		}
		if match {
			store.userCache.Set(user, pass)
			return true
		}
	} else if !errors.Is(err, sql.ErrNoRows) {
		store.log.Warn("user lookup", zap.Error(err))
	}
	return false
}
