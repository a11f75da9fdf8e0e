package crypto

import "crypto/md5"

// evpBytesToKey derives key and iv from a password the way OpenSSL's
// EVP_BytesToKey(md5, nil salt, 1 round) does:
//
//	D_0 = ""
//	D_i = MD5(D_{i-1} || password)
//	key || iv = D_1 || D_2 || ...
func evpBytesToKey(password string, keyLen, ivLen int) (key, iv []byte) {
	total := keyLen + ivLen
	material := make([]byte, 0, total+md5.Size)

	var prev []byte
	for len(material) < total {
		h := md5.New()
		h.Write(prev)
		h.Write([]byte(password))
		prev = h.Sum(nil)
		material = append(material, prev...)
	}

	return material[:keyLen], material[keyLen:total]
}
