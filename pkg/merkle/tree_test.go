// Copyright 2025 Certen Protocol
//
// Merkle tree tests

package merkle

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
)

func TestBuildTree_SingleLeaf(t *testing.T) {
	leaf := crypto.Keccak256([]byte("test data"))
	tree, err := BuildTree([][]byte{leaf})
	if err != nil {
		t.Fatalf("failed to build tree: %v", err)
	}

	if !bytes.Equal(tree.Root(), leaf) {
		t.Errorf("single leaf root mismatch: got %x, want %x", tree.Root(), leaf)
	}
	if tree.LeafCount() != 1 {
		t.Errorf("leaf count mismatch: got %d, want 1", tree.LeafCount())
	}
}

func TestBuildTree_TwoLeaves(t *testing.T) {
	leaf1 := crypto.Keccak256([]byte("leaf 1"))
	leaf2 := crypto.Keccak256([]byte("leaf 2"))

	tree, err := BuildTree([][]byte{leaf1, leaf2})
	if err != nil {
		t.Fatalf("failed to build tree: %v", err)
	}

	expectedRoot := hashPair(leaf1, leaf2)
	if !bytes.Equal(tree.Root(), expectedRoot) {
		t.Errorf("two leaf root mismatch: got %x, want %x", tree.Root(), expectedRoot)
	}
}

func TestBuildTree_OddLeaves(t *testing.T) {
	leaves := make([][]byte, 3)
	for i := 0; i < 3; i++ {
		leaves[i] = crypto.Keccak256([]byte{byte(i)})
	}

	tree, err := BuildTree(leaves)
	if err != nil {
		t.Fatalf("failed to build tree with odd leaves: %v", err)
	}
	if tree.LeafCount() != 3 {
		t.Errorf("leaf count mismatch: got %d, want 3", tree.LeafCount())
	}

	// Duplicating the final leaf at an odd level must differ from a
	// promote-without-duplicating root.
	noDupRoot := hashPair(leaves[0], leaves[1])
	if bytes.Equal(tree.Root(), noDupRoot) {
		t.Error("duplicate-last-node root should not equal a promote-without-duplicate root")
	}
}

func TestGenerateProof_TwoLeaves(t *testing.T) {
	leaf1 := crypto.Keccak256([]byte("leaf 1"))
	leaf2 := crypto.Keccak256([]byte("leaf 2"))

	tree, err := BuildTree([][]byte{leaf1, leaf2})
	if err != nil {
		t.Fatalf("failed to build tree: %v", err)
	}

	proof0, err := tree.GenerateProof(0)
	if err != nil {
		t.Fatalf("failed to generate proof for leaf 0: %v", err)
	}
	if proof0.Path[0].Position != Right {
		t.Errorf("sibling position mismatch: got %s, want right", proof0.Path[0].Position)
	}
	valid, err := VerifyProof(leaf1, proof0, tree.Root())
	if err != nil || !valid {
		t.Errorf("proof verification failed: valid=%v err=%v", valid, err)
	}

	proof1, err := tree.GenerateProof(1)
	if err != nil {
		t.Fatalf("failed to generate proof for leaf 1: %v", err)
	}
	if proof1.Path[0].Position != Left {
		t.Errorf("sibling position mismatch: got %s, want left", proof1.Path[0].Position)
	}
	valid, err = VerifyProof(leaf2, proof1, tree.Root())
	if err != nil || !valid {
		t.Errorf("proof verification failed: valid=%v err=%v", valid, err)
	}
}

func TestGenerateProof_LargeTree(t *testing.T) {
	leaves := make([][]byte, 100)
	for i := 0; i < 100; i++ {
		leaves[i] = crypto.Keccak256([]byte{byte(i), byte(i >> 8)})
	}

	tree, err := BuildTree(leaves)
	if err != nil {
		t.Fatalf("failed to build tree: %v", err)
	}

	for _, i := range []int{0, 1, 49, 50, 99} {
		proof, err := tree.GenerateProof(i)
		if err != nil {
			t.Fatalf("failed to generate proof for leaf %d: %v", i, err)
		}
		valid, err := VerifyProof(leaves[i], proof, tree.Root())
		if err != nil || !valid {
			t.Errorf("leaf %d: proof verification failed: valid=%v err=%v", i, valid, err)
		}
	}
}

func TestVerifyProof_InvalidProof(t *testing.T) {
	leaf1 := crypto.Keccak256([]byte("leaf 1"))
	leaf2 := crypto.Keccak256([]byte("leaf 2"))

	tree, err := BuildTree([][]byte{leaf1, leaf2})
	if err != nil {
		t.Fatalf("failed to build tree: %v", err)
	}

	proof, err := tree.GenerateProof(0)
	if err != nil {
		t.Fatalf("failed to generate proof: %v", err)
	}

	wrongLeaf := crypto.Keccak256([]byte("wrong leaf"))
	valid, err := VerifyProof(wrongLeaf, proof, tree.Root())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if valid {
		t.Error("proof should not be valid for wrong leaf")
	}

	wrongRoot := crypto.Keccak256([]byte("wrong root"))
	valid, err = VerifyProof(leaf1, proof, wrongRoot)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if valid {
		t.Error("proof should not be valid for wrong root")
	}
}

func TestGenerateProofByHash(t *testing.T) {
	leaf1 := crypto.Keccak256([]byte("leaf 1"))
	leaf2 := crypto.Keccak256([]byte("leaf 2"))

	tree, err := BuildTree([][]byte{leaf1, leaf2})
	if err != nil {
		t.Fatalf("failed to build tree: %v", err)
	}

	proof, err := tree.GenerateProofByHash(leaf2)
	if err != nil {
		t.Fatalf("failed to generate proof by hash: %v", err)
	}
	if proof.LeafIndex != 1 {
		t.Errorf("leaf index mismatch: got %d, want 1", proof.LeafIndex)
	}
	valid, err := VerifyProof(leaf2, proof, tree.Root())
	if err != nil || !valid {
		t.Errorf("proof verification failed: valid=%v err=%v", valid, err)
	}
}

func TestProofSerialization(t *testing.T) {
	leaves := make([][]byte, 4)
	for i := 0; i < 4; i++ {
		leaves[i] = crypto.Keccak256([]byte{byte(i)})
	}

	tree, err := BuildTree(leaves)
	if err != nil {
		t.Fatalf("failed to build tree: %v", err)
	}

	proof, err := tree.GenerateProof(2)
	if err != nil {
		t.Fatalf("failed to generate proof: %v", err)
	}

	jsonData, err := proof.ToJSON()
	if err != nil {
		t.Fatalf("failed to serialize proof: %v", err)
	}
	restored, err := ProofFromJSON(jsonData)
	if err != nil {
		t.Fatalf("failed to deserialize proof: %v", err)
	}

	leafHash, _ := hex.DecodeString(trimHexPrefix(restored.LeafHash))
	rootHash, _ := hex.DecodeString(trimHexPrefix(restored.MerkleRoot))

	valid, err := VerifyProof(leafHash, restored, rootHash)
	if err != nil || !valid {
		t.Errorf("restored proof verification failed: valid=%v err=%v", valid, err)
	}
}

func TestEmptyTree(t *testing.T) {
	tree, err := BuildTree([][]byte{})
	if err != nil {
		t.Fatalf("empty tree should build successfully: %v", err)
	}
	if tree.RootHex() != EmptyRootHex {
		t.Errorf("empty tree root = %q, want %q", tree.RootHex(), EmptyRootHex)
	}
}

func TestRootHash_EmptyAndSingle(t *testing.T) {
	root, err := RootHash(nil)
	if err != nil || root != EmptyRootHex {
		t.Fatalf("RootHash(nil) = %q, %v; want %q, nil", root, err, EmptyRootHex)
	}

	leaf := HashDataHex([]byte("only leaf"))
	root, err = RootHash([]string{leaf})
	if err != nil {
		t.Fatalf("RootHash single leaf error: %v", err)
	}
	if root != leaf {
		t.Errorf("single-leaf root = %q, want %q", root, leaf)
	}
}

func TestInvalidLeafHash(t *testing.T) {
	invalidLeaf := []byte("not 32 bytes")
	_, err := BuildTree([][]byte{invalidLeaf})
	if err == nil {
		t.Error("expected error for invalid leaf hash")
	}
}

func TestHashData(t *testing.T) {
	data := []byte("test data")
	hash := HashData(data)
	if len(hash) != 32 {
		t.Errorf("hash length mismatch: got %d, want 32", len(hash))
	}
	if !bytes.Equal(hash, HashData(data)) {
		t.Error("hash is not deterministic")
	}
}
