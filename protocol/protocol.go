package protocol

// Reference:
//   SOCKS5: https://www.rfc-editor.org/rfc/rfc1928
//   OpenSSL EVP_BytesToKey: https://www.openssl.org/docs/man3.0/man3/EVP_BytesToKey.html

// HEADER Protocol (plaintext, big-endian; the whole header is then encrypted
// once with the shared algorithm/secret):
//
// CONNECT REQUEST:
//   FLAG | ADDR_LEN | ADDR     | PORT | TIMESTAMP
//    1   |    2     | ADDR_LEN |  2   |    8 (ms since epoch, signed)
//
// CONNECT REPLY:
//   FLAG | SIG | TIMESTAMP
//    1   |  1  |    8 (ms since epoch, signed)
//
// FLAG:
//   0x86 control exchange (request/reply sent before the data plane)
//   0x01 inline request (prefixed to the first payload chunk)
//
// Every supported algorithm is a stream mode, so a header's ciphertext is as
// long as its plaintext and ADDR_LEN can be read from the first 3 bytes.
