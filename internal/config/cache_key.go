package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// TestQuestionsKey returns the cache key for a test's raw question bank
func (r *CacheKeyStruct) TestQuestionsKey(testID string) string {
	return fmt.Sprintf("test:%s:questions", testID)
}

// TestMetaKey returns the cache key for a test's metadata
func (r *CacheKeyStruct) TestMetaKey(testID string) string {
	return fmt.Sprintf("test:%s:meta", testID)
}

// SessionConfigKey returns the cache key for a user's chosen session config of a test
func (r *CacheKeyStruct) SessionConfigKey(userID, testID string) string {
	return fmt.Sprintf("user:%s:test:%s:session_config", userID, testID)
}

// ResultKey returns the cache key for a result record
func (r *CacheKeyStruct) ResultKey(resultID string) string {
	return fmt.Sprintf("result:%s", resultID)
}

var CacheKey = NewCacheKeyStruct()
