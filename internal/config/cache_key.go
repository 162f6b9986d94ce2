package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// EnrollmentStartKey returns the cache key for an enrollment's start instant.
func (r *CacheKeyStruct) EnrollmentStartKey(enrollmentID string) string {
	return fmt.Sprintf("enrollment:%s:started_at", enrollmentID)
}

// EnrollmentAnswersKey returns the cache key for an enrollment's autosaved answers.
func (r *CacheKeyStruct) EnrollmentAnswersKey(enrollmentID string) string {
	return fmt.Sprintf("enrollment:%s:answers", enrollmentID)
}

var CacheKey = NewCacheKeyStruct()
