// Package securestore provides the encryption capability used by the disk
// thumbnail cache for at-rest encryption. The cache takes an Encryptor at
// construction; when none is configured, blobs are stored in plaintext.
package securestore
