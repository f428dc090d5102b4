// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package sops encrypts small blobs such as the commit timestamp kept in
// object storage, using KMS master keys configured through the environment.
package sops

import (
	"errors"
	"fmt"
	"os"

	sopsapi "github.com/getsops/sops/v3"
	"github.com/getsops/sops/v3/aes"
	scommon "github.com/getsops/sops/v3/cmd/sops/common"
	"github.com/getsops/sops/v3/config"
	"github.com/getsops/sops/v3/decrypt"
	"github.com/getsops/sops/v3/gcpkms"
	skeys "github.com/getsops/sops/v3/keys"
	awskms "github.com/getsops/sops/v3/kms"
	jsonstore "github.com/getsops/sops/v3/stores/json"
	"github.com/getsops/sops/v3/version"

	"github.com/blinklabs-io/raffled/database/types"
)

const (
	EnvGcpKmsResourceID = "RAFFLED_GCP_KMS_RESOURCE_ID"
	EnvAwsKmsKeyArns    = "RAFFLED_AWS_KMS_KEY_ARNS"
	EnvAwsKmsProfile    = "RAFFLED_AWS_KMS_PROFILE"

	binaryFormat = "binary"
)

var (
	// ErrNoMasterKey is returned by Encrypt when no KMS key is configured
	ErrNoMasterKey = errors.New(
		"sops: no master key configured, set " +
			EnvGcpKmsResourceID + " and/or " + EnvAwsKmsKeyArns,
	)

	// ErrAlreadyEncrypted is returned by Encrypt for a sops document
	ErrAlreadyEncrypted = errors.New("sops: data is already encrypted")
)

// Decrypt opens a document produced by Encrypt
func Decrypt(data []byte) ([]byte, error) {
	return decrypt.Data(data, binaryFormat)
}

// Encrypt seals data with a fresh data key wrapped by every configured KMS key
func Encrypt(data []byte) ([]byte, error) {
	store := jsonstore.NewBinaryStore(&config.JSONBinaryStoreConfig{})
	branches, err := store.LoadPlainFile(data)
	if err != nil {
		return nil, fmt.Errorf("sops: load plaintext: %w", err)
	}
	if hasMetadata(branches) {
		return nil, ErrAlreadyEncrypted
	}
	groups, err := masterKeyGroups()
	if err != nil {
		return nil, err
	}
	tree := sopsapi.Tree{
		Branches: branches,
		Metadata: sopsapi.Metadata{
			KeyGroups: groups,
			Version:   version.Version,
		},
	}
	dataKey, errs := tree.GenerateDataKey()
	if len(errs) > 0 {
		return nil, fmt.Errorf("sops: generate data key: %w", errors.Join(errs...))
	}
	err = scommon.EncryptTree(scommon.EncryptTreeOpts{
		DataKey: dataKey,
		Tree:    &tree,
		Cipher:  aes.NewCipher(),
	})
	if err != nil {
		return nil, fmt.Errorf("sops: encrypt: %w", err)
	}
	out, err := store.EmitEncryptedFile(tree)
	if err != nil {
		return nil, fmt.Errorf("sops: emit: %w", err)
	}
	return out, nil
}

// EncryptTimestamp seals a commit timestamp
func EncryptTimestamp(ts int64) ([]byte, error) {
	return Encrypt(types.EncodeTimestamp(ts))
}

// DecryptTimestamp opens a commit timestamp sealed by EncryptTimestamp
func DecryptTimestamp(data []byte) (int64, error) {
	plain, err := Decrypt(data)
	if err != nil {
		return 0, err
	}
	return types.DecodeTimestamp(plain)
}

func hasMetadata(branches sopsapi.TreeBranches) bool {
	for _, branch := range branches {
		for _, item := range branch {
			if item.Key == "sops" {
				return true
			}
		}
	}
	return false
}

// masterKeyGroups builds one key group per configured KMS provider
func masterKeyGroups() ([]sopsapi.KeyGroup, error) {
	var groups []sopsapi.KeyGroup
	if rid := os.Getenv(EnvGcpKmsResourceID); rid != "" {
		var group sopsapi.KeyGroup
		for _, k := range gcpkms.MasterKeysFromResourceIDString(rid) {
			group = append(group, k)
		}
		groups = appendGroup(groups, group)
	}
	if arns := os.Getenv(EnvAwsKmsKeyArns); arns != "" {
		var group sopsapi.KeyGroup
		profile := os.Getenv(EnvAwsKmsProfile)
		for _, k := range awskms.MasterKeysFromArnString(arns, nil, profile) {
			group = append(group, k)
		}
		groups = appendGroup(groups, group)
	}
	if len(groups) == 0 {
		return nil, ErrNoMasterKey
	}
	return groups, nil
}

func appendGroup(
	groups []sopsapi.KeyGroup,
	group []skeys.MasterKey,
) []sopsapi.KeyGroup {
	if len(group) == 0 {
		return groups
	}
	return append(groups, group)
}
