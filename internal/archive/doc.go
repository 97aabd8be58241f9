// Package archive durably records raw provider-batch completion payloads
// to DynamoDB for replay or debugging (C12, SPEC_FULL §4), grounded on
// internal/storage.AWSStorage's DynamoDBItem shape.
package archive
