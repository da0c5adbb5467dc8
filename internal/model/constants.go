package model

import "time"

const DefaultTimeout = 500 * time.Millisecond
const DefaultLeaderboardLimit = 10
const DefaultHistoryLimit = 10
const MaxListLimit = 100

const HeaderContentType = "Content-Type"

type ContextKey string

const KeyContextLogger ContextKey = "logger"
const KeyContextAdmin ContextKey = "admin"

const KeyLoggerError = "error"
